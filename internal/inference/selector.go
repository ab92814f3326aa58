package inference

// ModelSelector walks an ordered fallback list. Rate-limited and unsupported
// models are skipped in favor of the next one; any other failure stops the
// walk.
type ModelSelector struct {
	models []string
}

// NewModelSelector returns a selector over models, dropping blanks and
// duplicates.
func NewModelSelector(models ...string) (ModelSelector, error) {
	seen := make(map[string]struct{}, len(models))
	ordered := make([]string, 0, len(models))
	for _, m := range models {
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		ordered = append(ordered, m)
	}
	if len(ordered) == 0 {
		return ModelSelector{}, ErrNoModels
	}
	return ModelSelector{models: ordered}, nil
}

// Models returns the fallback order.
func (s ModelSelector) Models() []string {
	out := make([]string, len(s.models))
	copy(out, s.models)
	return out
}

// Advance reports whether err should move the request to the next model.
func (s ModelSelector) Advance(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindModelUnsupported:
		return true
	default:
		return false
	}
}
