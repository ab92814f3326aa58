package enrichment

import (
	"strings"
	"unicode/utf8"
)

// Key length limits, in runes.
const (
	MaxLocationKeyLen = 160
	MaxTitleKeyLen    = 180
)

// LocationKey derives the content-addressed cache key for raw location text.
// Map links lose their query string so the same place shared from different
// apps collapses to one key.
func LocationKey(raw string) string {
	return normalizeKey(stripQuery(raw), MaxLocationKeyLen)
}

// TitleKey derives the cache key for an event title.
func TitleKey(raw string) string {
	return normalizeKey(stripQuery(raw), MaxTitleKeyLen)
}

// ShortenLocation trims location text for prompts the same way keys are
// trimmed, but keeps the original case.
func ShortenLocation(raw string) string {
	return truncateRunes(strings.Join(strings.Fields(stripQuery(raw)), " "), MaxLocationKeyLen)
}

// ShortenTitle trims a title for prompts.
func ShortenTitle(raw string) string {
	return truncateRunes(strings.Join(strings.Fields(raw), " "), MaxTitleKeyLen)
}

func normalizeKey(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = truncateRunes(s, limit)
	return strings.TrimSpace(strings.ToLower(s))
}

// stripQuery trims raw and drops the query and fragment of http(s) links.
func stripQuery(raw string) string {
	s := strings.TrimSpace(raw)
	if hasURLScheme(s) {
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
	}
	return s
}

func hasURLScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
