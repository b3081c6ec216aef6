package purge

import (
	"context"

	"factgraph/internal/fact"
	"factgraph/internal/logging"
	"factgraph/internal/query"
	"factgraph/internal/spec"
	"factgraph/internal/store"
)

const (
	rootLabel    = "root"
	triggerLabel = "trigger"
)

// Trigger is one purge-inverse: the arrival of a TriggerType fact
// identifies, via running InverseSpecification against it, a purge root
// and the facts underneath that root which must survive.
type Trigger struct {
	TriggerType          string
	InverseSpecification *spec.Specification
}

// BuildTrigger derives decl's purge-inverse: a single-match specification
// given a TriggerType fact that walks its predecessor role chain forward
// to the purge-bearing root, the same walk-back-and-clone shape
// internal/invert builds for negative-existential inverses, specialized
// to the one-match case a purge declaration is always shaped as.
func BuildTrigger(decl Declaration) Trigger {
	return Trigger{
		TriggerType: decl.TriggerType,
		InverseSpecification: &spec.Specification{
			Givens: []spec.LabeledGiven{{Label: triggerLabel, Type: decl.TriggerType}},
			Matches: []spec.Match{{
				Label: rootLabel,
				Type:  decl.Type,
				Conditions: []spec.Condition{
					spec.PathCondition{
						LeftLabel:  triggerLabel,
						LeftRoles:  decl.TriggerRoles,
						RightLabel: rootLabel,
					},
				},
			}},
			Projection: spec.CompositeProjection{Entries: []spec.CompositeEntry{
				{Name: rootLabel, Value: spec.LabelProjection{Label: rootLabel}},
				{Name: triggerLabel, Value: spec.LabelProjection{Label: triggerLabel}},
			}},
		},
	}
}

// Runner is the dynamic half of spec.md §6's purge interface: it watches
// a store for newly-saved facts and, for every declared trigger type,
// runs the matching purge-inverse and instructs the store to delete
// everything under the resolved root except the trigger chain. Grounded
// on internal/observe.Observer's own store-listener registration and
// single-goroutine dispatch, since purging must not race a concurrent
// Save touching the same subtree.
type Runner struct {
	store   store.Store
	runner  *query.Runner
	byType  map[string][]Trigger
	onError func(error)

	removeListener func()
	events         chan fact.Reference
	stopped        chan struct{}
}

// NewRunner constructs a Runner watching s for the fact types decls
// declare as triggers, and starts its dispatch loop. Stop deregisters it.
func NewRunner(ctx context.Context, s store.Store, q *query.Runner, decls []Declaration, onError func(error)) *Runner {
	byType := make(map[string][]Trigger, len(decls))
	for _, d := range decls {
		byType[d.TriggerType] = append(byType[d.TriggerType], BuildTrigger(d))
	}
	r := &Runner{
		store:   s,
		runner:  q,
		byType:  byType,
		onError: onError,
		events:  make(chan fact.Reference, 64),
		stopped: make(chan struct{}),
	}
	r.removeListener = s.AddSpecificationListener(r.onStoreEvent)
	go r.loop(ctx)
	return r
}

// Stop deregisters the store listener and halts the dispatch loop. Unlike
// internal/observe.Manager.Stop it is not idempotent: a second call closes
// r.stopped again and panics.
func (r *Runner) Stop() {
	if r.removeListener != nil {
		r.removeListener()
	}
	close(r.stopped)
}

func (r *Runner) onStoreEvent(ev store.ListenerEvent) {
	for _, ref := range ev.Saved {
		if _, ok := r.byType[ref.Type]; !ok {
			continue
		}
		select {
		case r.events <- ref:
		case <-r.stopped:
			return
		}
	}
}

func (r *Runner) loop(ctx context.Context) {
	for {
		select {
		case <-r.stopped:
			return
		case <-ctx.Done():
			return
		case ref := <-r.events:
			r.fire(ctx, ref)
		}
	}
}

func (r *Runner) fire(ctx context.Context, arrived fact.Reference) {
	for _, tr := range r.byType[arrived.Type] {
		results, err := r.runner.Run(ctx, tr.InverseSpecification, []fact.Reference{arrived})
		if err != nil {
			r.reportError(err)
			continue
		}
		for _, res := range results {
			root, ok := res.Tuple[rootLabel]
			if !ok {
				continue
			}
			trigger, ok := res.Tuple[triggerLabel]
			if !ok {
				continue
			}
			n, err := r.store.PurgeDescendants(ctx, root, []fact.Reference{trigger})
			if err != nil {
				r.reportError(err)
				continue
			}
			logging.Purge("purged %d descendant(s) of %s keeping %s", n, root, trigger)
		}
	}
}

func (r *Runner) reportError(err error) {
	logging.PurgeError("%v", err)
	if r.onError != nil {
		r.onError(err)
	}
}
