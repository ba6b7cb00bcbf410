// Package policy decides which statement kinds each role may run.
//
// The policy is immutable once constructed. Overrides come from an optional
// YAML file read exactly once; after that every decision is a pure function
// of (role, classified statement). unsafe-unknown is not a grantable kind and
// the representation cannot express it.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datagate-ai/datagate-engine/pkg/models"
	"github.com/datagate-ai/datagate-engine/pkg/sql"
)

// Policy maps roles to the statement kinds they may execute.
type Policy struct {
	permitted map[string]map[sql.StatementKind]bool
}

// Default returns the built-in policy:
//
//	admin  ⇒ read, schema-definition, data-mutation, data-deletion
//	editor ⇒ read, data-mutation
//	viewer ⇒ read
func Default() *Policy {
	return &Policy{
		permitted: map[string]map[sql.StatementKind]bool{
			models.RoleAdmin: {
				sql.KindRead:             true,
				sql.KindSchemaDefinition: true,
				sql.KindDataMutation:     true,
				sql.KindDataDeletion:     true,
			},
			models.RoleEditor: {
				sql.KindRead:         true,
				sql.KindDataMutation: true,
			},
			models.RoleViewer: {
				sql.KindRead: true,
			},
		},
	}
}

// policyFile mirrors the YAML override document:
//
//	roles:
//	  editor:
//	    - read
//	    - data-mutation
//	    - data-deletion
type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadFile reads a YAML role-policy override. Roles present in the file
// replace their default kind set wholesale; absent roles keep the defaults.
// Unknown role names and ungrantable kinds are rejected.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var doc policyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	return fromOverrides(doc.Roles)
}

func fromOverrides(overrides map[string][]string) (*Policy, error) {
	p := Default()
	for role, kinds := range overrides {
		if !models.IsValidRole(role) {
			return nil, fmt.Errorf("policy file names unknown role %q", role)
		}
		set := make(map[sql.StatementKind]bool, len(kinds))
		for _, k := range kinds {
			kind := sql.StatementKind(k)
			if !sql.IsValidStatementKind(kind) {
				return nil, fmt.Errorf("policy file grants ungrantable kind %q to role %q", k, role)
			}
			set[kind] = true
		}
		p.permitted[role] = set
	}
	return p, nil
}

// Permits reports whether the role may execute the given statement kind.
// Unknown roles are permitted nothing.
func (p *Policy) Permits(role string, kind sql.StatementKind) bool {
	kinds, ok := p.permitted[role]
	if !ok {
		return false
	}
	return kinds[kind]
}

// PermittedKinds returns the kinds the role may execute, in the canonical
// kind order.
func (p *Policy) PermittedKinds(role string) []sql.StatementKind {
	kinds, ok := p.permitted[role]
	if !ok {
		return nil
	}
	var out []sql.StatementKind
	for _, kind := range sql.ValidStatementKinds {
		if kinds[kind] {
			out = append(out, kind)
		}
	}
	return out
}
