// Package store defines the storage contract fact databases implement
// (save, whichExist, load, read, purge, purgeDescendants,
// addSpecificationListener) and provides an in-memory reference
// implementation.
package store

import (
	"context"

	"factgraph/internal/fact"
)

// ListenerEvent carries the delta a Store reports to its registered
// listeners: references newly saved, and references removed by a purge.
// A single event never carries both a non-empty Saved and a non-empty
// Removed slice — Save and Purge each report their own kind of delta.
type ListenerEvent struct {
	Saved   []fact.Reference
	Removed []fact.Reference
}

// SpecificationListener receives every Save and Purge delta a Store
// produces. The observer engine (internal/observe) is the primary
// consumer: it uses Saved deltas to drive late-given re-reads and Removed
// deltas to drive purge-triggered notification.
type SpecificationListener func(ListenerEvent)

// Store is the storage contract spec.md §4.D and §6 describe. Persistent
// backends are explicitly out of scope; Memory is the only implementation
// this module ships.
type Store interface {
	// Save persists envelopes whose (type, hash) is not already present,
	// assigns each a "known-at" position in the store's logical clock, and
	// returns the references that were newly saved (already-present
	// envelopes are silently skipped, not reported).
	Save(ctx context.Context, envelopes []fact.Envelope) ([]fact.Reference, error)

	// WhichExist reports, for each input reference, whether it is present.
	WhichExist(ctx context.Context, refs []fact.Reference) (map[fact.Reference]bool, error)

	// Load returns the records present for the given references. A
	// reference with no corresponding record is simply absent from the
	// result map — missing facts are not an error (spec.md §7).
	Load(ctx context.Context, refs []fact.Reference) (map[fact.Reference]fact.Record, error)

	// Read returns every reference that names pred as its predecessor
	// under role — the index-driven join spec.md §4.E.3 requires for
	// match expansion along a path condition.
	Read(ctx context.Context, pred fact.Reference, role string) ([]fact.Reference, error)

	// KnownAt returns the logical save-order position assigned to ref when
	// it was saved, for `@label` time-marker projections.
	KnownAt(ctx context.Context, ref fact.Reference) (int64, bool, error)

	// FactsOfType returns every reference of typeName in storage
	// enumeration (insertion) order, for matches with no path condition.
	FactsOfType(ctx context.Context, typeName string) ([]fact.Reference, error)

	// Purge removes every descendant of root (transitively, via any role)
	// and reports how many records were removed.
	Purge(ctx context.Context, root fact.Reference) (int, error)

	// PurgeDescendants removes every descendant of root except the facts
	// named in keep and their own descendants, and reports how many
	// records were removed.
	PurgeDescendants(ctx context.Context, root fact.Reference, keep []fact.Reference) (int, error)

	// AddSpecificationListener registers l to receive every future Save
	// and Purge delta. The returned function deregisters it; calling it
	// more than once is a no-op.
	AddSpecificationListener(l SpecificationListener) (remove func())
}
