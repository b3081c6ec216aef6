// Package query implements the specification runner: given binding,
// given-condition pruning, ordered match expansion, and projection, per
// spec.md §4.E.
package query

import "factgraph/internal/fact"

// ValueKind tags the variant a Value holds — the "tagged-variant
// projection shapes" spec.md §9 calls for.
type ValueKind int

const (
	ValueRef ValueKind = iota
	ValueScalar
	ValueKnownAt
	ValueNested
	ValueComposite
)

// Value is one evaluated projection result. Exactly one field is
// meaningful, selected by Kind.
type Value struct {
	Kind      ValueKind
	Ref       fact.Reference
	Scalar    fact.Scalar
	KnownAt   int64
	Nested    []Result
	Composite map[string]Value
}

// Result pairs a fully-bound tuple (every label resolved so far, including
// labels introduced by nested existentials) with its projected value.
type Result struct {
	Tuple map[string]fact.Reference
	Value Value
}

func copyTuple(t map[string]fact.Reference) map[string]fact.Reference {
	out := make(map[string]fact.Reference, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
