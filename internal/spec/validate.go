package spec

import (
	"fmt"
	"sort"
)

// unionFind is a small disjoint-set structure over label names, used to
// check the connectedness invariant.
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(label string) {
	if _, ok := u.parent[label]; !ok {
		u.parent[label] = label
	}
}

func (u *unionFind) find(label string) string {
	u.add(label)
	for u.parent[label] != label {
		u.parent[label] = u.parent[u.parent[label]]
		label = u.parent[label]
	}
	return label
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// labelInfo records the declared fact type of every label seen while
// walking a specification, including nested existentials and nested
// sub-specification projections.
type labelInfo struct {
	types map[string]TypeName
	uf    *unionFind
	// order of appearance, used only for stable diagnostics.
	order []string
}

func newLabelInfo() *labelInfo {
	return &labelInfo{types: make(map[string]TypeName), uf: newUnionFind()}
}

func (li *labelInfo) declare(label, typ string) {
	if _, ok := li.types[label]; !ok {
		li.order = append(li.order, label)
	}
	li.types[label] = typ
	li.uf.add(label)
}

// Validate checks a specification against the invariants spec.md §3/§4.B-C
// require: connectedness, type coherence of role steps, and given-order
// visibility. It returns a *BuildError (possibly wrapping multiple
// diagnostics) or nil.
func Validate(s *Specification, schema *Schema) error {
	li := newLabelInfo()

	for _, g := range s.Givens {
		li.declare(g.Label, g.Type)
	}
	for _, m := range s.Matches {
		li.declare(m.Label, m.Type)
	}

	if err := walkConditionsForGivens(s, li); err != nil {
		return err
	}
	walkConditions(allConditions(s), li)
	walkProjectionLabels(s.Projection, li)

	if err := checkTypeCoherence(s, schema, li); err != nil {
		return err
	}
	if err := checkConnectedness(s, li); err != nil {
		return err
	}
	return nil
}

// allConditions gathers every top-level condition across givens and matches.
func allConditions(s *Specification) []Condition {
	var out []Condition
	for _, g := range s.Givens {
		out = append(out, g.Conditions...)
	}
	for _, m := range s.Matches {
		out = append(out, m.Conditions...)
	}
	return out
}

// walkConditions unions labels connected by path conditions and by
// existential-to-owner edges, recursing into nested existential matches.
func walkConditions(conds []Condition, li *labelInfo) {
	for _, c := range conds {
		switch cc := c.(type) {
		case PathCondition:
			li.uf.add(cc.LeftLabel)
			li.uf.add(cc.RightLabel)
			li.uf.union(cc.LeftLabel, cc.RightLabel)
		case ExistentialCondition:
			for _, m := range cc.Matches {
				li.declare(m.Label, m.Type)
				walkConditions(m.Conditions, li)
			}
			// Connect every label introduced by the existential's own
			// matches to every other label its path conditions touch —
			// the "existential connection to its outer scope" edge is
			// already created by path conditions inside those matches
			// referencing an outer label (e.g. "cl->office = office").
		}
	}
}

// walkConditionsForGivens enforces given-order visibility: a condition on
// given i may reference labels j < i and labels introduced within its own
// conditions, never a label declared by a later given or by a top-level
// match.
func walkConditionsForGivens(s *Specification, li *labelInfo) error {
	seen := make(map[string]int, len(s.Givens))
	for i, g := range s.Givens {
		seen[g.Label] = i
	}
	matchLabels := make(map[string]bool, len(s.Matches))
	for _, m := range s.Matches {
		matchLabels[m.Label] = true
	}

	for i, g := range s.Givens {
		local := map[string]bool{g.Label: true}
		if err := checkGivenConditions(g.Conditions, i, seen, matchLabels, local); err != nil {
			return err
		}
	}
	return nil
}

func checkGivenConditions(conds []Condition, givenIndex int, givenOrder map[string]int, matchLabels map[string]bool, local map[string]bool) error {
	for _, c := range conds {
		switch cc := c.(type) {
		case PathCondition:
			for _, lbl := range []string{cc.LeftLabel, cc.RightLabel} {
				if local[lbl] {
					continue
				}
				if idx, ok := givenOrder[lbl]; ok {
					if idx >= givenIndex {
						return NewBuildError(ForwardGivenReference,
							fmt.Sprintf("given condition references later given %q", lbl))
					}
					continue
				}
				if matchLabels[lbl] {
					return NewBuildError(ForwardGivenReference,
						fmt.Sprintf("given condition references match label %q, which is not yet introduced", lbl))
				}
			}
		case ExistentialCondition:
			inner := make(map[string]bool, len(local)+len(cc.Matches))
			for k := range local {
				inner[k] = true
			}
			for _, m := range cc.Matches {
				inner[m.Label] = true
			}
			for _, m := range cc.Matches {
				if err := checkGivenConditions(m.Conditions, givenIndex, givenOrder, matchLabels, inner); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// walkProjectionLabels declares/unions labels reached only through the
// projection tree (nested sub-specifications and composites), recursing.
func walkProjectionLabels(p Projection, li *labelInfo) {
	switch pp := p.(type) {
	case LabelProjection:
		li.uf.add(pp.Label)
	case FieldProjection:
		li.uf.add(pp.Label)
	case TimeProjection:
		li.uf.add(pp.Label)
	case CompositeProjection:
		for _, e := range pp.Entries {
			walkProjectionLabels(e.Value, li)
		}
	case *Specification:
		for _, m := range pp.Matches {
			li.declare(m.Label, m.Type)
		}
		walkConditions(allConditions(pp), li)
		walkProjectionLabels(pp.Projection, li)
	}
}

// checkTypeCoherence verifies that every path condition on s's givens and
// matches (including those inside their existentials) resolves, through
// the schema, to a common meeting type on both sides. Path conditions
// inside nested projection specifications are not type-checked.
func checkTypeCoherence(s *Specification, schema *Schema, li *labelInfo) error {
	return walkConditionsTypeCheck(allConditions(s), schema, li)
}

func walkConditionsTypeCheck(conds []Condition, schema *Schema, li *labelInfo) error {
	for _, c := range conds {
		switch cc := c.(type) {
		case PathCondition:
			leftType, ok := li.types[cc.LeftLabel]
			if !ok {
				return NewBuildError(TypeMismatchInRole,
					fmt.Sprintf("path condition references undeclared label %q", cc.LeftLabel))
			}
			rightType, ok := li.types[cc.RightLabel]
			if !ok {
				return NewBuildError(TypeMismatchInRole,
					fmt.Sprintf("path condition references undeclared label %q", cc.RightLabel))
			}
			leftMeet, err := resolveRoleChain(schema, leftType, cc.LeftRoles)
			if err != nil {
				return err
			}
			rightMeet, err := resolveRoleChain(schema, rightType, cc.RightRoles)
			if err != nil {
				return err
			}
			if leftMeet != "" && rightMeet != "" && leftMeet != rightMeet {
				return NewBuildError(TypeMismatchInRole,
					fmt.Sprintf("path %s->...=%s->... meets at mismatched types %q vs %q",
						cc.LeftLabel, cc.RightLabel, leftMeet, rightMeet))
			}
		case ExistentialCondition:
			for _, m := range cc.Matches {
				li.declare(m.Label, m.Type)
			}
			if err := walkConditionsTypeCheck(subMatchConditions(cc.Matches), schema, li); err != nil {
				return err
			}
		}
	}
	return nil
}

func subMatchConditions(ms []Match) []Condition {
	var out []Condition
	for _, m := range ms {
		out = append(out, m.Conditions...)
	}
	return out
}

// resolveRoleChain walks predecessor roles from startType, returning the
// type of the fact reached. An empty chain returns startType unchanged
// (the label itself is the meeting point).
func resolveRoleChain(schema *Schema, startType string, roles []string) (string, error) {
	current := startType
	for _, role := range roles {
		next, ok := schema.RoleType(current, role)
		if !ok {
			return "", NewBuildError(TypeMismatchInRole,
				fmt.Sprintf("type %q has no role %q declared in schema", current, role))
		}
		current = next
	}
	return current, nil
}

// checkConnectedness verifies the undirected graph of labels — given
// labels, match labels, and any label reached only via a nested
// projection — forms a single connected component.
func checkConnectedness(s *Specification, li *labelInfo) error {
	anchors := make([]string, 0, len(s.Givens))
	for _, g := range s.Givens {
		anchors = append(anchors, g.Label)
	}
	if len(anchors) == 0 {
		// A specification used as a nested projection has no Givens of
		// its own; its anchor is whatever label its own matches/paths
		// reference from the enclosing scope. Connectedness among its
		// own matches is still checked below against the first label
		// encountered.
		if len(li.order) == 0 {
			return nil
		}
		anchors = append(anchors, li.order[0])
	}

	root := li.uf.find(anchors[0])
	components := make(map[string][]string)
	for _, label := range li.order {
		r := li.uf.find(label)
		components[r] = append(components[r], label)
	}

	if len(components) <= 1 {
		return nil
	}

	// Disconnected: report every subgraph other than the givens' root,
	// plus the root's own members, for diagnostics.
	var details []string
	for r, members := range components {
		sort.Strings(members)
		marker := ""
		if r == root {
			marker = " (contains given(s))"
		}
		details = append(details, fmt.Sprintf("{%s}%s", joinLabels(members), marker))
	}
	sort.Strings(details)
	return NewBuildError(DisconnectedSpecification,
		"specification labels form more than one connected component", details...)
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ","
		}
		out += l
	}
	return out
}
