package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/dylan-euc/client-side-quiz/internal/validator"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"golang.org/x/mod/semver"
)

// snapshot is an immutable view of the registered flows.
type snapshot struct {
	// versions per flow id, newest first.
	versions map[string][]*domain.FlowDefinition
	ids      []string
}

// Registry holds validated flow definitions.
// Lookups read an immutable snapshot; Replace swaps it atomically.
type Registry struct {
	current atomic.Pointer[snapshot]
	opts    []validator.Option
}

// Option configures a Registry.
type Option func(*Registry)

// WithValidation adds validator options (e.g. validator.Strict()) applied to every flow.
func WithValidation(opts ...validator.Option) Option {
	return func(r *Registry) {
		r.opts = append(r.opts, opts...)
	}
}

// New validates and registers flows. It fails on the first invalid flow.
func New(flows []*domain.FlowDefinition, opts ...Option) (*Registry, error) {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Replace(flows...); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates flows and swaps them in as the new set.
// On error the previous set stays in place.
func (r *Registry) Replace(flows ...*domain.FlowDefinition) error {
	snap, err := build(flows, r.opts)
	if err != nil {
		return err
	}
	r.current.Store(snap)
	return nil
}

func build(flows []*domain.FlowDefinition, opts []validator.Option) (*snapshot, error) {
	snap := &snapshot{versions: make(map[string][]*domain.FlowDefinition)}
	for _, f := range flows {
		if f == nil {
			continue
		}
		if err := validator.ValidateFlow(f, opts...); err != nil {
			return nil, err
		}
		for _, existing := range snap.versions[f.ID] {
			if existing.Version == f.Version {
				return nil, fmt.Errorf("flow %s registered twice", f.Key())
			}
		}
		snap.versions[f.ID] = append(snap.versions[f.ID], f)
	}

	for id, versions := range snap.versions {
		slices.SortStableFunc(versions, func(a, b *domain.FlowDefinition) int {
			return compareVersions(b.Version, a.Version)
		})
		snap.ids = append(snap.ids, id)
	}
	slices.Sort(snap.ids)
	return snap, nil
}

// compareVersions orders semantic versions; anything that is not one sorts
// below every valid version and lexically among its peers.
func compareVersions(a, b string) int {
	va, vb := canonical(a), canonical(b)
	switch {
	case va != "" && vb != "":
		return semver.Compare(va, vb)
	case va != "":
		return 1
	case vb != "":
		return -1
	}
	return strings.Compare(a, b)
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

func (r *Registry) snap() *snapshot {
	if s := r.current.Load(); s != nil {
		return s
	}
	return &snapshot{}
}

// GetFlow returns the newest version of a flow.
func (r *Registry) GetFlow(id string) (*domain.FlowDefinition, bool) {
	versions := r.snap().versions[id]
	if len(versions) == 0 {
		return nil, false
	}
	return versions[0], true
}

// GetFlowVersions returns every version of a flow, newest first.
func (r *Registry) GetFlowVersions(id string) []*domain.FlowDefinition {
	return slices.Clone(r.snap().versions[id])
}

// GetFlowByVersion returns one specific version of a flow.
func (r *Registry) GetFlowByVersion(id, version string) (*domain.FlowDefinition, bool) {
	for _, f := range r.snap().versions[id] {
		if f.Version == version {
			return f, true
		}
	}
	return nil, false
}

// All returns the newest version of every flow, ordered by id.
func (r *Registry) All() []*domain.FlowDefinition {
	s := r.snap()
	out := make([]*domain.FlowDefinition, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.versions[id][0])
	}
	return out
}

// Exists reports whether any version of the flow is registered.
func (r *Registry) Exists(id string) bool {
	return len(r.snap().versions[id]) > 0
}
