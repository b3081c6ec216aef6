package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	"factgraph/internal/fact"
	"factgraph/internal/logging"
	"factgraph/internal/spec"
	"factgraph/internal/store"
)

const defaultMaxConcurrency = 8

// Runner evaluates specifications against a Store. It holds no per-query
// state and is safe for concurrent use across unrelated queries; nested
// sub-specifications recurse through the same Runner. Each projection
// stage bounds its own worker pool to MaxConcurrency, so the bound applies
// per nesting level; nested levels are not counted against a shared total.
type Runner struct {
	Store          store.Store
	MaxConcurrency int
}

// NewRunner returns a Runner bounded to maxConcurrency concurrent
// projection evaluations; a non-positive value falls back to a sane
// default.
func NewRunner(s store.Store, maxConcurrency int) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Runner{Store: s, MaxConcurrency: maxConcurrency}
}

// Run executes s against r.Store with the given top-level given references,
// bound positionally to s.Givens, and returns the ordered projected
// results. Run never returns an error for absent givens or absent
// projected facts — those produce an empty result set or a dropped tuple,
// per spec.md §4.E's "drop tuple, never error" rule.
func (r *Runner) Run(ctx context.Context, s *spec.Specification, givenRefs []fact.Reference) ([]Result, error) {
	tuples, err := r.bindGivens(ctx, s, givenRefs)
	if err != nil {
		return nil, err
	}
	tuples, err = r.expandMatches(ctx, s.Matches, tuples)
	if err != nil {
		return nil, err
	}
	return r.project(ctx, s.Projection, tuples)
}

// runNested evaluates a given-less nested specification, using outerTuple
// as the set of already-bound labels the nested matches' path conditions
// may reference.
func (r *Runner) runNested(ctx context.Context, s *spec.Specification, outerTuple map[string]fact.Reference) ([]Result, error) {
	tuples := []map[string]fact.Reference{copyTuple(outerTuple)}
	tuples, err := r.expandMatches(ctx, s.Matches, tuples)
	if err != nil {
		return nil, err
	}
	return r.project(ctx, s.Projection, tuples)
}

// bindGivens forms the initial tuple set (one tuple, or none) and applies
// each given's attached existential conditions.
func (r *Runner) bindGivens(ctx context.Context, s *spec.Specification, givenRefs []fact.Reference) ([]map[string]fact.Reference, error) {
	if len(s.Givens) != len(givenRefs) {
		return nil, nil
	}
	tuple := make(map[string]fact.Reference, len(s.Givens))
	for i, g := range s.Givens {
		exist, err := r.Store.WhichExist(ctx, []fact.Reference{givenRefs[i]})
		if err != nil {
			return nil, err
		}
		if !exist[givenRefs[i]] {
			return nil, nil
		}
		tuple[g.Label] = givenRefs[i]
	}

	for _, g := range s.Givens {
		ok, err := r.satisfiesConditions(ctx, g.Conditions, tuple)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}
	return []map[string]fact.Reference{tuple}, nil
}

// expandMatches threads tuples through matches in declared order,
// enumerating candidate bindings for each match's unknown via an
// index-driven join and filtering by the match's conditions.
func (r *Runner) expandMatches(ctx context.Context, matches []spec.Match, tuples []map[string]fact.Reference) ([]map[string]fact.Reference, error) {
	for _, m := range matches {
		var next []map[string]fact.Reference
		for _, tuple := range tuples {
			candidates, err := r.candidatesFor(ctx, m, tuple)
			if err != nil {
				return nil, err
			}
			for _, cand := range candidates {
				if cand.Type != m.Type {
					continue
				}
				extended := copyTuple(tuple)
				extended[m.Label] = cand
				ok, err := r.satisfiesConditions(ctx, m.Conditions, extended)
				if err != nil {
					return nil, err
				}
				if ok {
					next = append(next, extended)
				}
			}
		}
		tuples = next
	}
	return tuples, nil
}

// candidatesFor finds every candidate binding for m.Label given the labels
// already bound in tuple. It prefers the first path condition connecting
// m.Label to an already-bound label for the index-driven join; with no
// such condition it falls back to a full type scan (storage enumeration
// order).
func (r *Runner) candidatesFor(ctx context.Context, m spec.Match, tuple map[string]fact.Reference) ([]fact.Reference, error) {
	for _, c := range m.Conditions {
		path, ok := c.(spec.PathCondition)
		if !ok {
			continue
		}
		switch {
		case path.LeftLabel == m.Label:
			if anchor, ok := tuple[path.RightLabel]; ok {
				anchorResolved, ok, err := r.resolveForward(ctx, anchor, path.RightRoles)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, nil
				}
				return r.candidatesFromAnchor(ctx, anchorResolved, path.LeftRoles)
			}
		case path.RightLabel == m.Label:
			if anchor, ok := tuple[path.LeftLabel]; ok {
				anchorResolved, ok, err := r.resolveForward(ctx, anchor, path.LeftRoles)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, nil
				}
				return r.candidatesFromAnchor(ctx, anchorResolved, path.RightRoles)
			}
		}
	}
	return r.Store.FactsOfType(ctx, m.Type)
}

// candidatesFromAnchor walks an unknown-to-anchor role chain backward from
// anchor, one index hop per role, starting from the role nearest the
// anchor (the end of the chain).
func (r *Runner) candidatesFromAnchor(ctx context.Context, anchor fact.Reference, roles []string) ([]fact.Reference, error) {
	current := []fact.Reference{anchor}
	for i := len(roles) - 1; i >= 0; i-- {
		var next []fact.Reference
		for _, c := range current {
			succs, err := r.Store.Read(ctx, c, roles[i])
			if err != nil {
				return nil, err
			}
			next = append(next, succs...)
		}
		current = next
	}
	return current, nil
}

// resolveForward walks a predecessor role chain forward from start,
// returning false (not an error) if any hop's fact or role is absent.
func (r *Runner) resolveForward(ctx context.Context, start fact.Reference, roles []string) (fact.Reference, bool, error) {
	current := start
	for _, role := range roles {
		recs, err := r.Store.Load(ctx, []fact.Reference{current})
		if err != nil {
			return fact.Reference{}, false, err
		}
		rec, ok := recs[current]
		if !ok {
			return fact.Reference{}, false, nil
		}
		pv, ok := rec.Predecessor(role)
		if !ok || len(pv.Refs) == 0 {
			return fact.Reference{}, false, nil
		}
		current = pv.First()
	}
	return current, true, nil
}

// satisfiesConditions checks every path condition (must hold) and every
// existential condition (must match its Exists polarity) in conds against
// tuple.
func (r *Runner) satisfiesConditions(ctx context.Context, conds []spec.Condition, tuple map[string]fact.Reference) (bool, error) {
	for _, c := range conds {
		switch cc := c.(type) {
		case spec.PathCondition:
			ok, err := r.pathHolds(ctx, cc, tuple)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		case spec.ExistentialCondition:
			found, err := r.existentialHolds(ctx, cc, tuple)
			if err != nil {
				return false, err
			}
			if found != cc.Exists {
				return false, nil
			}
		}
	}
	return true, nil
}

func (r *Runner) pathHolds(ctx context.Context, cond spec.PathCondition, tuple map[string]fact.Reference) (bool, error) {
	leftStart, ok := tuple[cond.LeftLabel]
	if !ok {
		return false, nil
	}
	rightStart, ok := tuple[cond.RightLabel]
	if !ok {
		return false, nil
	}
	left, ok, err := r.resolveForward(ctx, leftStart, cond.LeftRoles)
	if err != nil || !ok {
		return false, err
	}
	right, ok, err := r.resolveForward(ctx, rightStart, cond.RightRoles)
	if err != nil || !ok {
		return false, err
	}
	return left == right, nil
}

// existentialHolds reports whether at least one tuple survives matching
// cond's nested matches against tuple, regardless of cond's own polarity
// (the caller compares against cond.Exists).
func (r *Runner) existentialHolds(ctx context.Context, cond spec.ExistentialCondition, tuple map[string]fact.Reference) (bool, error) {
	extended, err := r.expandMatches(ctx, cond.Matches, []map[string]fact.Reference{copyTuple(tuple)})
	if err != nil {
		return false, err
	}
	return len(extended) > 0, nil
}

// project evaluates s's projection for every tuple, using a bounded worker
// pool since projections are independent per tuple, then reassembles
// results in the original tuple order.
func (r *Runner) project(ctx context.Context, proj spec.Projection, tuples []map[string]fact.Reference) ([]Result, error) {
	results := make([]Result, len(tuples))
	keep := make([]bool, len(tuples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.MaxConcurrency)
	for i, tuple := range tuples {
		i, tuple := i, tuple
		g.Go(func() error {
			value, ok, err := r.evalProjection(gctx, proj, tuple)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			results[i] = Result{Tuple: tuple, Value: value}
			keep[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(results))
	for i, r := range results {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out, nil
}

// evalProjection evaluates one projection for one tuple. ok is false when
// a label projection's fact is absent — the tuple is silently dropped, not
// an error.
func (r *Runner) evalProjection(ctx context.Context, proj spec.Projection, tuple map[string]fact.Reference) (Value, bool, error) {
	switch p := proj.(type) {
	case nil:
		return Value{}, true, nil
	case spec.LabelProjection:
		ref, ok := tuple[p.Label]
		if !ok {
			return Value{}, false, nil
		}
		exist, err := r.Store.WhichExist(ctx, []fact.Reference{ref})
		if err != nil {
			return Value{}, false, err
		}
		if !exist[ref] {
			return Value{}, false, nil
		}
		return Value{Kind: ValueRef, Ref: ref}, true, nil
	case spec.FieldProjection:
		ref, ok := tuple[p.Label]
		if !ok {
			return Value{}, false, nil
		}
		recs, err := r.Store.Load(ctx, []fact.Reference{ref})
		if err != nil {
			return Value{}, false, err
		}
		rec, ok := recs[ref]
		if !ok {
			return Value{}, false, nil
		}
		val, ok := rec.Field(p.Field)
		if !ok {
			return Value{}, false, &RuntimeDataError{Kind: ProjectionFieldMissing, Label: p.Label, Field: p.Field}
		}
		return Value{Kind: ValueScalar, Scalar: val}, true, nil
	case spec.TimeProjection:
		ref, ok := tuple[p.Label]
		if !ok {
			return Value{}, false, nil
		}
		at, ok, err := r.Store.KnownAt(ctx, ref)
		if err != nil {
			return Value{}, false, err
		}
		if !ok {
			return Value{}, false, nil
		}
		return Value{Kind: ValueKnownAt, KnownAt: at}, true, nil
	case *spec.Specification:
		nested, err := r.runNested(ctx, p, tuple)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Kind: ValueNested, Nested: nested}, true, nil
	case spec.CompositeProjection:
		composite := make(map[string]Value, len(p.Entries))
		for _, e := range p.Entries {
			val, ok, err := r.evalProjection(ctx, e.Value, tuple)
			if err != nil {
				return Value{}, false, err
			}
			if !ok {
				return Value{}, false, nil
			}
			composite[e.Name] = val
		}
		return Value{Kind: ValueComposite, Composite: composite}, true, nil
	default:
		logging.QueryError("unrecognized projection type %T", proj)
		return Value{}, false, nil
	}
}
