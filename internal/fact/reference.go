// Package fact defines the immutable, content-addressed fact record: its
// scalar field encoding, typed predecessor references, canonical hash, and
// the envelope that carries a record alongside its opaque signatures.
package fact

import "fmt"

// Reference identifies a fact by its type and content hash. Equality is
// structural; a reference may name a fact absent from local storage.
type Reference struct {
	Type string `json:"type"`
	Hash string `json:"hash"`
}

// String renders a reference as "Type#hash" for logs and error messages.
func (r Reference) String() string {
	return fmt.Sprintf("%s#%s", r.Type, r.Hash)
}

// IsZero reports whether r is the zero reference.
func (r Reference) IsZero() bool {
	return r.Type == "" && r.Hash == ""
}

// PredecessorValue is either a single reference or an ordered list of
// references, tagged by Multi so canonical encoding can reproduce the
// wire distinction between `ref` and `[ref, ...]`.
type PredecessorValue struct {
	Refs  []Reference
	Multi bool
}

// Single constructs a single-valued predecessor.
func Single(ref Reference) PredecessorValue {
	return PredecessorValue{Refs: []Reference{ref}}
}

// List constructs an ordered-list-valued predecessor, preserving order.
func List(refs ...Reference) PredecessorValue {
	return PredecessorValue{Refs: append([]Reference(nil), refs...), Multi: true}
}

// First returns the first reference, or the zero reference if empty.
func (p PredecessorValue) First() Reference {
	if len(p.Refs) == 0 {
		return Reference{}
	}
	return p.Refs[0]
}
