// Package registry holds the canonical operation table: the bidirectional
// alias mapping and the per-operation object-store policy. The table is
// data-driven (ops.yaml, embedded) so tooling can regenerate it without
// touching lookup logic.
package registry

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aquilhq/actionlog/pkg/models"
)

//go:embed ops.yaml
var opsYAML []byte

type opEntry struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
	R2Policy  string   `yaml:"r2_policy"`
}

type opsTable struct {
	Ops []opEntry `yaml:"ops"`
}

// Registry resolves operation identifiers. Immutable after construction;
// safe for concurrent use without locking.
type Registry struct {
	policies map[string]models.R2Policy // canonical -> policy
	aliases  map[string]string          // alias -> canonical
}

// New builds the registry from the embedded table.
func New() (*Registry, error) {
	return NewFromYAML(opsYAML)
}

// MustNew builds the registry from the embedded table and panics on error.
// The table is part of the build; a malformed table is a programming error.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(fmt.Sprintf("registry: invalid operation table: %v", err))
	}
	return r
}

// NewFromYAML builds a registry from a YAML table. Duplicate canonicals,
// duplicate aliases, and aliases shadowing a canonical id all fail here
// rather than surfacing as lookup surprises later.
func NewFromYAML(data []byte) (*Registry, error) {
	var table opsTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse operation table: %w", err)
	}
	if len(table.Ops) == 0 {
		return nil, fmt.Errorf("operation table is empty")
	}

	r := &Registry{
		policies: make(map[string]models.R2Policy, len(table.Ops)),
		aliases:  make(map[string]string),
	}

	for _, op := range table.Ops {
		if op.Canonical == "" {
			return nil, fmt.Errorf("operation entry with empty canonical id")
		}
		if _, ok := r.policies[op.Canonical]; ok {
			return nil, fmt.Errorf("duplicate canonical operation %q", op.Canonical)
		}
		policy := models.R2Policy(op.R2Policy)
		if !policy.Valid() {
			return nil, fmt.Errorf("operation %q: invalid r2_policy %q", op.Canonical, op.R2Policy)
		}
		r.policies[op.Canonical] = policy
	}

	for _, op := range table.Ops {
		for _, alias := range op.Aliases {
			if alias == "" {
				return nil, fmt.Errorf("operation %q: empty alias", op.Canonical)
			}
			if _, ok := r.policies[alias]; ok {
				return nil, fmt.Errorf("alias %q shadows a canonical operation", alias)
			}
			if prev, ok := r.aliases[alias]; ok {
				return nil, fmt.Errorf("alias %q maps to both %q and %q", alias, prev, op.Canonical)
			}
			r.aliases[alias] = op.Canonical
		}
	}

	return r, nil
}

// ToCanonical resolves s to its canonical form. Total: canonical ids map to
// themselves, known aliases map to their canonical id, and anything else
// passes through unchanged with known=false so the write path can count it.
func (r *Registry) ToCanonical(s string) (canonical string, known bool) {
	if _, ok := r.policies[s]; ok {
		return s, true
	}
	if c, ok := r.aliases[s]; ok {
		return c, true
	}
	return s, false
}

// IsKnown reports whether s is a canonical id or a registered alias.
func (r *Registry) IsKnown(s string) bool {
	_, known := r.ToCanonical(s)
	return known
}

// R2Policy returns the object-store policy for a canonical operation.
// Unknown operations get R2None: nothing reaches the object store for an
// operation nobody declared.
func (r *Registry) R2Policy(canonical string) models.R2Policy {
	if p, ok := r.policies[canonical]; ok {
		return p
	}
	return models.R2None
}

// AllCanonical returns the sorted canonical ids.
func (r *Registry) AllCanonical() []string {
	out := make([]string, 0, len(r.policies))
	for c := range r.policies {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// AllAliases returns the sorted registered aliases.
func (r *Registry) AllAliases() []string {
	out := make([]string, 0, len(r.aliases))
	for a := range r.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of canonical operations.
func (r *Registry) Count() int {
	return len(r.policies)
}
