package stats

import (
	"fmt"
	"strings"

	"github.com/lifely/lifely/internal/models"
)

// SuggestMerges pairs inferred friends with email friends whose address local
// part contains the inferred name, or is contained by it. A display name that
// also contains the name raises confidence to high.
func SuggestMerges(inferred []models.InferredFriend, friends []models.FriendStats) []models.MergeSuggestion {
	suggestions := []models.MergeSuggestion{}

	for _, inf := range inferred {
		name := inf.NormalizedName
		if name == "" {
			continue
		}
		for _, friend := range friends {
			prefix := strings.ToLower(friend.Email)
			if at := strings.IndexByte(prefix, '@'); at >= 0 {
				prefix = prefix[:at]
			}
			if prefix == "" {
				continue
			}
			if !strings.Contains(prefix, name) && !strings.Contains(name, prefix) {
				continue
			}

			confidence := models.MergeConfidenceMedium
			if friend.DisplayName != "" && strings.Contains(strings.ToLower(friend.DisplayName), name) {
				confidence = models.MergeConfidenceHigh
			}
			suggestions = append(suggestions, models.MergeSuggestion{
				InferredName:   inf.Name,
				SuggestedEmail: friend.Email,
				Confidence:     confidence,
				Reason:         fmt.Sprintf("'%s' matches email prefix '%s'", inf.Name, prefix),
			})
		}
	}

	return suggestions
}
