package spec

import "factgraph/internal/fact"

// TypeName is a dotted fact type name, e.g. "Office.Closed".
type TypeName = string

// TypeDecl declares, for one fact type, the expected predecessor type per
// role name and the scalar kind per field name.
type TypeDecl struct {
	Roles  map[string]TypeName
	Fields map[string]fact.ScalarKind
}

// Schema is a registry of type declarations callers build once (e.g. from
// the literal User/Company/Office/... schema in spec.md §8) and pass to the
// parser/builder so the "type coherence" invariant can be enforced.
type Schema struct {
	Types map[TypeName]TypeDecl
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{Types: make(map[TypeName]TypeDecl)}
}

// Declare registers (or replaces) a type's declaration.
func (s *Schema) Declare(name TypeName, decl TypeDecl) {
	if decl.Roles == nil {
		decl.Roles = make(map[string]TypeName)
	}
	if decl.Fields == nil {
		decl.Fields = make(map[string]fact.ScalarKind)
	}
	s.Types[name] = decl
}

// RoleType returns the declared predecessor type for a role on typeName.
func (s *Schema) RoleType(typeName, role string) (TypeName, bool) {
	decl, ok := s.Types[typeName]
	if !ok {
		return "", false
	}
	t, ok := decl.Roles[role]
	return t, ok
}

// FieldKind returns the declared scalar kind for a field on typeName.
func (s *Schema) FieldKind(typeName, field string) (fact.ScalarKind, bool) {
	decl, ok := s.Types[typeName]
	if !ok {
		return 0, false
	}
	k, ok := decl.Fields[field]
	return k, ok
}

// HasType reports whether typeName is declared.
func (s *Schema) HasType(typeName string) bool {
	_, ok := s.Types[typeName]
	return ok
}

// DefaultOfficeSchema returns the literal schema used throughout spec.md
// §8's end-to-end scenarios: User(publicKey), Company(creator:User,
// identifier), Office(company:Company, identifier),
// Office.Closed(office:Office, date), Office.Reopened(officeClosed:Office.Closed),
// plus Manager(office:Office, employeeNumber) used by the nested-collection
// scenario.
func DefaultOfficeSchema() *Schema {
	s := NewSchema()
	s.Declare("User", TypeDecl{
		Fields: map[string]fact.ScalarKind{"publicKey": fact.KindString},
	})
	s.Declare("Company", TypeDecl{
		Roles:  map[string]TypeName{"creator": "User"},
		Fields: map[string]fact.ScalarKind{"identifier": fact.KindString},
	})
	s.Declare("Office", TypeDecl{
		Roles:  map[string]TypeName{"company": "Company"},
		Fields: map[string]fact.ScalarKind{"identifier": fact.KindString},
	})
	s.Declare("Office.Closed", TypeDecl{
		Roles:  map[string]TypeName{"office": "Office"},
		Fields: map[string]fact.ScalarKind{"date": fact.KindTime},
	})
	s.Declare("Office.Reopened", TypeDecl{
		Roles: map[string]TypeName{"officeClosed": "Office.Closed"},
	})
	s.Declare("Manager", TypeDecl{
		Roles:  map[string]TypeName{"office": "Office"},
		Fields: map[string]fact.ScalarKind{"employeeNumber": fact.KindNumber},
	})
	return s
}
