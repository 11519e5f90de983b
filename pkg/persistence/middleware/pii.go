package middleware

import (
	"context"
	"regexp"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
)

// Mask replaces values that must not be persisted.
const Mask = "***"

type piiMiddleware struct {
	ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks answers whose step id or
// shortcode matches one of the patterns. Keys of nested maps are checked too.
// Masked values are lost; a resumed session sees Mask instead.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{SessionStore: next, patterns: patterns}
	}
}

func (m *piiMiddleware) SaveAnswer(ctx context.Context, answer domain.AnswerRecord) error {
	if m.matches(answer.StepID) || m.matches(answer.Shortcode) {
		answer.Value = Mask
	} else {
		answer.Value = m.maskValue(answer.Value)
	}
	return m.SessionStore.SaveAnswer(ctx, answer)
}

func (m *piiMiddleware) matches(key string) bool {
	if key == "" {
		return false
	}
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// maskValue returns a masked deep copy of maps; the caller's value is never modified.
func (m *piiMiddleware) maskValue(v any) any {
	src, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(src))
	for k, sub := range src {
		if m.matches(k) {
			out[k] = Mask
			continue
		}
		out[k] = m.maskValue(sub)
	}
	return out
}
