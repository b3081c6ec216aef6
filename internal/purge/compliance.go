// Package purge implements the two purge-interface halves spec.md §6
// describes: a static compliance checker for specifications that match
// purge-bearing types, and a dynamic trigger routine that runs
// purge-inverses against newly-saved facts and instructs the store to
// delete. Purge *policy* (deciding which types are purge-bearing, and
// why) stays the caller's responsibility — only the mechanism is here.
package purge

import (
	"fmt"

	"factgraph/internal/spec"
)

// Declaration names one purge-bearing type: the exact negative
// existential condition every match on Type must carry wherever it
// appears, expressed structurally (type + role chain) rather than by
// label, since different specifications bind the same type under
// different labels.
type Declaration struct {
	// Type is the purge-bearing fact type.
	Type string
	// TriggerType is the type of fact whose presence means a Type match
	// should be considered purge-eligible (e.g. "Office.Reopened").
	TriggerType string
	// TriggerRoles is the predecessor role chain walked forward from a
	// TriggerType fact back to its purge-bearing Type ancestor, in the
	// same left-to-right order spec.md's path grammar uses (e.g.
	// ["officeClosed"] for the condition written `r->officeClosed = c`).
	TriggerRoles []string
}

// CheckCompliance reports every match in s (including those nested inside
// existentials and nested projection specifications) on a declared
// purge-bearing type that either lacks the exact declared negative
// existential or is traversed non-terminally by another match's path
// condition. A compliant specification returns nil.
func CheckCompliance(s *spec.Specification, decls []Declaration) error {
	byType := make(map[string]Declaration, len(decls))
	for _, d := range decls {
		byType[d.Type] = d
	}

	var details []string
	for _, g := range s.Givens {
		for _, c := range g.Conditions {
			if ex, ok := c.(spec.ExistentialCondition); ok {
				walkScope(ex.Matches, byType, &details)
			}
		}
	}
	walkScope(s.Matches, byType, &details)
	walkProjectionScopes(s.Projection, byType, &details)

	if len(details) > 0 {
		return spec.NewBuildError(spec.PurgeComplianceFailure, "specification is not purge-compliant", details...)
	}
	return nil
}

// walkScope checks every match directly in scope (a matches-block at one
// nesting level, where path conditions between its members can connect)
// and recurses into nested existential matches, which form their own
// scope.
func walkScope(scope []spec.Match, byType map[string]Declaration, details *[]string) {
	for _, m := range scope {
		if decl, ok := byType[m.Type]; ok {
			if !hasExactExistential(m, decl) {
				*details = append(*details, fmt.Sprintf(
					"match %q of purge-bearing type %q is missing the required !E { : %s } condition",
					m.Label, m.Type, decl.TriggerType))
			}
			if traversedNonTerminally(m, scope) {
				*details = append(*details, fmt.Sprintf(
					"match %q of purge-bearing type %q is traversed by another match's path condition past its own label",
					m.Label, m.Type))
			}
		}
		for _, c := range m.Conditions {
			if ex, ok := c.(spec.ExistentialCondition); ok {
				walkScope(ex.Matches, byType, details)
			}
		}
	}
}

func walkProjectionScopes(proj spec.Projection, byType map[string]Declaration, details *[]string) {
	switch p := proj.(type) {
	case spec.CompositeProjection:
		for _, e := range p.Entries {
			walkProjectionScopes(e.Value, byType, details)
		}
	case *spec.Specification:
		walkScope(p.Matches, byType, details)
		walkProjectionScopes(p.Projection, byType, details)
	}
}

// hasExactExistential reports whether m carries a negative existential
// condition whose single inner match is exactly decl's declared trigger
// shape.
func hasExactExistential(m spec.Match, decl Declaration) bool {
	for _, c := range m.Conditions {
		ex, ok := c.(spec.ExistentialCondition)
		if !ok || ex.Exists {
			continue
		}
		if existentialMatchesDeclaration(ex, m.Label, decl) {
			return true
		}
	}
	return false
}

// existentialMatchesDeclaration checks ex's lone inner match against
// decl's trigger type and role chain, independent of the labels the
// specification under test happens to use.
func existentialMatchesDeclaration(ex spec.ExistentialCondition, ownerLabel string, decl Declaration) bool {
	if len(ex.Matches) != 1 {
		return false
	}
	trig := ex.Matches[0]
	if trig.Type != decl.TriggerType {
		return false
	}
	for _, c := range trig.Conditions {
		path, ok := c.(spec.PathCondition)
		if !ok {
			continue
		}
		if path.LeftLabel == trig.Label && path.RightLabel == ownerLabel &&
			len(path.RightRoles) == 0 && rolesEqual(path.LeftRoles, decl.TriggerRoles) {
			return true
		}
		if path.RightLabel == trig.Label && path.LeftLabel == ownerLabel &&
			len(path.LeftRoles) == 0 && rolesEqual(path.RightRoles, decl.TriggerRoles) {
			return true
		}
	}
	return false
}

func rolesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// traversedNonTerminally reports whether some other match in the same
// scope anchors a role chain at m's label and continues past it — i.e.
// resolves m's label forward by one or more roles to reach a further
// fact, rather than treating m itself as the terminal type a path
// condition reaches.
func traversedNonTerminally(m spec.Match, scope []spec.Match) bool {
	for _, other := range scope {
		if other.Label == m.Label {
			continue
		}
		for _, c := range other.Conditions {
			path, ok := c.(spec.PathCondition)
			if !ok {
				continue
			}
			if path.LeftLabel == m.Label && len(path.LeftRoles) > 0 {
				return true
			}
			if path.RightLabel == m.Label && len(path.RightRoles) > 0 {
				return true
			}
		}
	}
	return false
}
