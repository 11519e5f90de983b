package ports_test

import (
	"testing"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestSessionFilter_Match(t *testing.T) {
	rec := &domain.SessionRecord{FlowID: "skin-consult", UserID: "u1", Status: domain.SessionInProgress}

	tests := []struct {
		name   string
		filter ports.SessionFilter
		want   bool
	}{
		{"zero filter", ports.SessionFilter{}, true},
		{"flow", ports.SessionFilter{FlowID: "skin-consult"}, true},
		{"other flow", ports.SessionFilter{FlowID: "weight-loss"}, false},
		{"user and status", ports.SessionFilter{UserID: "u1", Status: domain.SessionInProgress}, true},
		{"status mismatch", ports.SessionFilter{Status: domain.SessionCompleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(rec))
		})
	}
}
