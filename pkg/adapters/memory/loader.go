package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/dylan-euc/client-side-quiz/internal/compiler"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
)

// Loader implements ports.FlowLoader over flows held in memory.
type Loader struct {
	flows []*domain.FlowDefinition
}

var _ ports.FlowLoader = (*Loader)(nil)

// NewLoader creates a loader that returns the given flows.
func NewLoader(flows ...*domain.FlowDefinition) *Loader {
	return &Loader{flows: flows}
}

// NewFromSources parses raw YAML or JSON documents keyed by name.
// This improves DX for tests that keep flows inline.
func NewFromSources(sources map[string]string) (*Loader, error) {
	p := compiler.NewParser()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	slices.Sort(names)

	flows := make([]*domain.FlowDefinition, 0, len(sources))
	for _, name := range names {
		f, err := p.Parse([]byte(sources[name]))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		flows = append(flows, f)
	}
	return &Loader{flows: flows}, nil
}

// LoadFlows returns the flows in the order they were given.
func (l *Loader) LoadFlows(ctx context.Context) ([]*domain.FlowDefinition, error) {
	return slices.Clone(l.flows), nil
}
