package invert

import "factgraph/internal/spec"

// Invert derives every inverse specification for forward: one per match
// (a type whose arrival can add a tuple), one pair per negative existential
// (remove on arrival, restore on purge), one per positive existential
// (arrival may add), composed recursively through nested projection
// collections.
func Invert(forward *spec.Specification) ([]Inverse, error) {
	w := &walker{root: forward, givenSubset: givenLabels(forward.Givens)}
	var out []Inverse

	ancestor := givensAsMatches(forward.Givens)
	w.walkMatches(ancestor, forward.Matches, nil, nil, forward.Matches, forward.Projection, &out)

	for _, g := range forward.Givens {
		w.walkConditionsExistentials(ancestor, g.Label, g.Conditions, []string{g.Label}, nil, &out)
	}

	w.walkProjection(ancestor, forward.Projection, nil, &out)
	return out, nil
}

type walker struct {
	root        *spec.Specification
	givenSubset []string
}

func givenLabels(givens []spec.LabeledGiven) []string {
	out := make([]string, len(givens))
	for i, g := range givens {
		out[i] = g.Label
	}
	return out
}

func givensAsMatches(givens []spec.LabeledGiven) []spec.Match {
	out := make([]spec.Match, len(givens))
	for i, g := range givens {
		out[i] = spec.Match{Label: g.Label, Type: g.Type, Conditions: g.Conditions}
	}
	return out
}

// matchIsSelfInverse reports whether m's unknown is reached purely by
// walking predecessor roles forward from an already-bound label (the
// unknown never appears as the role-chain source pointing at the bound
// side). Per spec.md §9, such a match's inverse must not claim its own
// label as a resultSubset — it carries no independently observable
// "arrival" distinct from the match that bound its anchor.
func matchIsSelfInverse(m spec.Match) bool {
	for _, c := range m.Conditions {
		path, ok := c.(spec.PathCondition)
		if !ok {
			continue
		}
		if path.LeftLabel == m.Label && len(path.LeftRoles) == 0 && len(path.RightRoles) > 0 {
			return true
		}
		if path.RightLabel == m.Label && len(path.RightRoles) == 0 && len(path.LeftRoles) > 0 {
			return true
		}
	}
	return false
}

// walkMatches emits one add-inverse per match in scopeMatches, then
// recurses into each match's existential conditions. ancestor is the
// already-resolved (unmodified) matches chain needed to rebind every
// label outside this scope; resultPrefix is the resultSubset accumulated
// down to this scope, threaded forward across scopeMatches so a
// self-inverse match can inherit the resultSubset of the match before it;
// path is the nested-projection name chain; siblings is scopeMatches
// itself (passed separately so injection only rewrites the local scope,
// not ancestor).
func (w *walker) walkMatches(ancestor []spec.Match, scopeMatches []spec.Match, resultPrefix []string, path []string, siblings []spec.Match, scopeProjection spec.Projection, out *[]Inverse) {
	prefix := resultPrefix
	for _, m := range scopeMatches {
		rs := append(append([]string{}, prefix...), m.Label)
		if matchIsSelfInverse(m) && len(prefix) > 0 {
			rs = prefix
		}

		injected, found := injectInMatches(siblings, m.Label)
		full := append(append([]spec.Match{}, ancestor...), injected...)
		if !found {
			full = append(append([]spec.Match{}, ancestor...), siblings...)
		}

		*out = append(*out, Inverse{
			InverseSpecification: &spec.Specification{
				Givens:     []spec.LabeledGiven{{Label: ArrivedLabel, Type: m.Type}},
				Matches:    full,
				Projection: scopeProjection,
			},
			GivenSubset:  w.givenSubset,
			ResultSubset: rs,
			Operation:    OpAdd,
			Path:         append([]string{}, path...),
		})

		w.walkConditionsExistentials(append(append([]spec.Match{}, ancestor...), siblings...), m.Label, m.Conditions, rs, path, out)
		prefix = rs
	}
}

// walkConditionsExistentials finds every ExistentialCondition in conds (the
// conditions of the match labeled ownerLabel) and emits the remove
// (negative) or maybeAdd (positive, and negative's own restore-on-purge)
// inverses for its inner matches.
func (w *walker) walkConditionsExistentials(ancestor []spec.Match, ownerLabel string, conds []spec.Condition, resultPrefix []string, path []string, out *[]Inverse) {
	for _, c := range conds {
		ex, ok := c.(spec.ExistentialCondition)
		if !ok {
			continue
		}
		for _, m := range ex.Matches {
			rs := append(append([]string{}, resultPrefix...), m.Label)
			injected, found := injectInMatches(ex.Matches, m.Label)
			full := append(append([]spec.Match{}, ancestor...), injected...)
			if !found {
				full = append(append([]spec.Match{}, ancestor...), ex.Matches...)
			}

			op := OpMaybeAdd
			triggerMatches := full
			if !ex.Exists {
				// The owner's own !E condition is what this arrival just
				// violated — re-checking it via the query engine would
				// trivially fail (the fact we're walking back from is the
				// witness). Strip it so the walk-back recovers the outer
				// tuple by path alone.
				op = OpRemove
				triggerMatches = stripOwnerExistentials(full, ownerLabel)
			}
			*out = append(*out, Inverse{
				InverseSpecification: &spec.Specification{
					Givens:     []spec.LabeledGiven{{Label: ArrivedLabel, Type: m.Type}},
					Matches:    triggerMatches,
					Projection: existentialProjection(resultPrefix),
				},
				GivenSubset:  w.givenSubset,
				ResultSubset: resultPrefix,
				Operation:    op,
				Path:         append([]string{}, path...),
			})

			if !ex.Exists {
				// The disappearance of the same unknown restores the
				// tuples its arrival removed; re-checking !E here is
				// exactly what we want (it now holds again after purge).
				*out = append(*out, Inverse{
					InverseSpecification: &spec.Specification{
						Givens:     []spec.LabeledGiven{{Label: ArrivedLabel, Type: m.Type}},
						Matches:    full,
						Projection: existentialProjection(resultPrefix),
					},
					GivenSubset:  w.givenSubset,
					ResultSubset: resultPrefix,
					Operation:    OpMaybeAdd,
					Path:         append([]string{}, path...),
				})
			}

			w.walkConditionsExistentials(append(append([]spec.Match{}, ancestor...), ex.Matches...), m.Label, m.Conditions, rs, path, out)
		}
	}
}

// stripOwnerExistentials returns a copy of matches with every
// ExistentialCondition removed from the match labeled ownerLabel's own
// conditions, keeping its path conditions intact.
func stripOwnerExistentials(matches []spec.Match, ownerLabel string) []spec.Match {
	out := make([]spec.Match, len(matches))
	for i, m := range matches {
		if m.Label != ownerLabel {
			out[i] = m
			continue
		}
		nm := m
		var paths []spec.Condition
		for _, c := range m.Conditions {
			if _, ok := c.(spec.ExistentialCondition); ok {
				continue
			}
			paths = append(paths, c)
		}
		nm.Conditions = paths
		out[i] = nm
	}
	return out
}

// existentialProjection builds a minimal projection sufficient to recover
// the notification key for resultSubset: a single label projection if
// resultSubset names exactly one label, otherwise a composite of each.
func existentialProjection(resultSubset []string) spec.Projection {
	if len(resultSubset) == 1 {
		return spec.LabelProjection{Label: resultSubset[0]}
	}
	entries := make([]spec.CompositeEntry, len(resultSubset))
	for i, label := range resultSubset {
		entries[i] = spec.CompositeEntry{Name: label, Value: spec.LabelProjection{Label: label}}
	}
	return spec.CompositeProjection{Entries: entries}
}

// walkProjection recurses into composite and nested-specification
// projections, composing inverses for nested collections: the inner
// specification's own matches become the new scope, with ancestor
// extended by the outer matches so nested path conditions can still
// resolve outer labels.
func (w *walker) walkProjection(ancestor []spec.Match, proj spec.Projection, path []string, out *[]Inverse) {
	switch p := proj.(type) {
	case spec.CompositeProjection:
		for _, e := range p.Entries {
			w.walkProjectionEntry(ancestor, e.Value, append(append([]string{}, path...), e.Name), out)
		}
	case *spec.Specification:
		w.walkProjectionEntry(ancestor, p, path, out)
	}
}

func (w *walker) walkProjectionEntry(ancestor []spec.Match, proj spec.Projection, path []string, out *[]Inverse) {
	nested, ok := proj.(*spec.Specification)
	if !ok {
		if comp, ok := proj.(spec.CompositeProjection); ok {
			w.walkProjection(ancestor, comp, path, out)
		}
		return
	}
	w.walkMatches(ancestor, nested.Matches, nil, path, nested.Matches, nested.Projection, out)
	newAncestor := append(append([]spec.Match{}, ancestor...), nested.Matches...)
	w.walkProjection(newAncestor, nested.Projection, path, out)
}

// injectInMatches returns a copy of matches with one extra path condition,
// equating ArrivedLabel to targetLabel, appended to the match named
// targetLabel's own conditions.
func injectInMatches(matches []spec.Match, targetLabel string) ([]spec.Match, bool) {
	out := make([]spec.Match, len(matches))
	found := false
	for i, m := range matches {
		nm := m
		if m.Label == targetLabel {
			nm.Conditions = append(append([]spec.Condition{}, m.Conditions...),
				spec.PathCondition{LeftLabel: ArrivedLabel, RightLabel: targetLabel})
			found = true
		}
		out[i] = nm
	}
	return out, found
}
