package llm

import (
	"fmt"
	"sort"
)

// Role names with dedicated provider slots. Judge and asker fall back to the
// solver when not configured.
const (
	RoleSolver = "solver"
	RoleJudge  = "judge"
	RoleAsker  = "asker"
)

// ProviderInfo describes one active provider for run reporting.
type ProviderInfo struct {
	Name  string
	Model string
}

// Registry maps role names to providers. The solver role is required;
// every other role falls back to it.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from role-keyed providers. The solver role
// is mandatory.
func NewRegistry(providers map[string]Provider) (*Registry, error) {
	if _, ok := providers[RoleSolver]; !ok {
		return nil, fmt.Errorf("no solver provider configured: the %q role is required", RoleSolver)
	}
	return &Registry{providers: providers}, nil
}

func (r *Registry) Solver() Provider { return r.providers[RoleSolver] }

func (r *Registry) Judge() Provider { return r.Get(RoleJudge) }

func (r *Registry) Asker() Provider { return r.Get(RoleAsker) }

// Get returns the provider for a role, falling back to the solver.
func (r *Registry) Get(role string) Provider {
	if p, ok := r.providers[role]; ok {
		return p
	}
	return r.Solver()
}

// HasRole reports whether the role is explicitly configured.
func (r *Registry) HasRole(role string) bool {
	_, ok := r.providers[role]
	return ok
}

// Roles returns the explicitly configured role names, sorted.
func (r *Registry) Roles() []string {
	roles := make([]string, 0, len(r.providers))
	for role := range r.providers {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// ActiveProviders returns per-role provider info for the run header.
func (r *Registry) ActiveProviders() map[string]ProviderInfo {
	info := make(map[string]ProviderInfo, len(r.providers))
	for role, p := range r.providers {
		model := p.DefaultModel()
		if model == "" {
			model = "N/A"
		}
		info[role] = ProviderInfo{Name: p.Name(), Model: model}
	}
	return info
}
