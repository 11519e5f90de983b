package ports

import "github.com/dylan-euc/client-side-quiz/pkg/domain"

// FlowRegistry looks up flow definitions.
// Every definition it returns has already passed structural validation.
type FlowRegistry interface {
	// GetFlow returns the current (newest) version of a flow.
	GetFlow(id string) (*domain.FlowDefinition, bool)

	// GetFlowVersions returns every version of a flow, newest first.
	GetFlowVersions(id string) []*domain.FlowDefinition

	// GetFlowByVersion returns one specific version of a flow.
	GetFlowByVersion(id, version string) (*domain.FlowDefinition, bool)
}
