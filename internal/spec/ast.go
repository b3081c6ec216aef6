// Package spec defines the specification AST (givens, matches, conditions,
// projections), a schema registry for role/field type coherence, a
// hand-written recursive-descent parser and describer for the textual
// grammar, and the connectedness/type-coherence validation spec.md requires
// at build time.
package spec

// Specification is a query: an ordered list of labeled givens, an ordered
// list of matches, and a projection shaping each surviving tuple.
//
// A Specification used as a nested projection (directly or inside a
// composite) carries no Givens of its own — it is evaluated against the
// tuple already bound by the enclosing scope. An existential's body is a
// plain list of matches (ExistentialCondition.Matches), not a Specification.
type Specification struct {
	Givens     []LabeledGiven
	Matches    []Match
	Projection Projection
}

// LabeledGiven is a caller-supplied query anchor: a label, its fact type,
// and the existential conditions that must hold for it to participate in
// any result tuple.
type LabeledGiven struct {
	Label      string
	Type       string
	Conditions []Condition
}

// Match introduces one new unknown, bound by path and existential
// conditions evaluated in declared order.
type Match struct {
	Label      string
	Type       string
	Conditions []Condition
}

// Condition is either a Path or an Existential condition.
type Condition interface {
	conditionNode()
}

// PathCondition links two labeled facts via role chains meeting at a common
// intermediate fact. At least one side's Roles is non-empty.
type PathCondition struct {
	LeftLabel  string
	LeftRoles  []string
	RightLabel string
	RightRoles []string
}

func (PathCondition) conditionNode() {}

// ExistentialCondition is "E" (Exists=true) or "!E" (Exists=false) over a
// sub-specification's matches.
type ExistentialCondition struct {
	Exists  bool
	Matches []Match
}

func (ExistentialCondition) conditionNode() {}

// Projection is one of LabelProjection, FieldProjection, TimeProjection,
// *Specification (nested sub-query), or CompositeProjection.
type Projection interface {
	projectionNode()
}

// LabelProjection projects the fact referenced by a label.
type LabelProjection struct {
	Label string
}

func (LabelProjection) projectionNode() {}

// FieldProjection projects a scalar field of a labeled fact.
type FieldProjection struct {
	Label string
	Field string
}

func (FieldProjection) projectionNode() {}

// TimeProjection projects the known-at timestamp of a labeled fact ("@label").
type TimeProjection struct {
	Label string
}

func (TimeProjection) projectionNode() {}

func (*Specification) projectionNode() {}

// CompositeEntry is one named field of a CompositeProjection; entries
// preserve declaration order.
type CompositeEntry struct {
	Name  string
	Value Projection
}

// CompositeProjection is a heterogeneous, arbitrarily-nestable record of
// named projections.
type CompositeProjection struct {
	Entries []CompositeEntry
}

func (CompositeProjection) projectionNode() {}
