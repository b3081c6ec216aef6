package spec

import "strings"

// Describe renders a specification back to its textual form. Describe and
// Parse round-trip: Parse(Describe(s)) is structurally equivalent to s,
// modulo nothing — label names, order, and roles are preserved exactly.
func Describe(s *Specification) string {
	var b strings.Builder
	describeGivensForm(&b, s)
	return b.String()
}

// describeGivensForm writes the full "(" givens ")" "{" matches "}" form,
// used for every specification that owns its own givens clause.
func describeGivensForm(b *strings.Builder, s *Specification) {
	b.WriteString("(")
	for i, g := range s.Givens {
		if i > 0 {
			b.WriteString(", ")
		}
		describeLabeledGiven(b, g)
	}
	b.WriteString(") ")
	describeMatchesBlock(b, s.Matches)
	if s.Projection != nil {
		b.WriteString(" => ")
		describeProjection(b, s.Projection)
	}
}

// describeNestedForm writes the givens-less shorthand "{" matches "}" form
// used when a specification appears as a projection.
func describeNestedForm(b *strings.Builder, s *Specification) {
	describeMatchesBlock(b, s.Matches)
	if s.Projection != nil {
		b.WriteString(" => ")
		describeProjection(b, s.Projection)
	}
}

func describeLabeledGiven(b *strings.Builder, g LabeledGiven) {
	b.WriteString(g.Label)
	b.WriteString(": ")
	b.WriteString(g.Type)
	if len(g.Conditions) > 0 {
		b.WriteString(" [")
		describeConditions(b, g.Conditions)
		b.WriteString("]")
	}
}

func describeMatchesBlock(b *strings.Builder, matches []Match) {
	b.WriteString("{")
	for _, m := range matches {
		b.WriteString(" ")
		describeMatch(b, m)
	}
	if len(matches) > 0 {
		b.WriteString(" ")
	}
	b.WriteString("}")
}

func describeMatch(b *strings.Builder, m Match) {
	b.WriteString(m.Label)
	b.WriteString(": ")
	b.WriteString(m.Type)
	b.WriteString(" [")
	describeConditions(b, m.Conditions)
	b.WriteString("]")
}

func describeConditions(b *strings.Builder, conds []Condition) {
	for i, c := range conds {
		if i > 0 {
			b.WriteString(", ")
		}
		describeCondition(b, c)
	}
}

func describeCondition(b *strings.Builder, c Condition) {
	switch cc := c.(type) {
	case PathCondition:
		b.WriteString(cc.LeftLabel)
		describeRoleChain(b, cc.LeftRoles)
		b.WriteString(" = ")
		b.WriteString(cc.RightLabel)
		describeRoleChain(b, cc.RightRoles)
	case ExistentialCondition:
		if cc.Exists {
			b.WriteString("E ")
		} else {
			b.WriteString("!E ")
		}
		describeMatchesBlock(b, cc.Matches)
	}
}

func describeRoleChain(b *strings.Builder, roles []string) {
	for _, r := range roles {
		b.WriteString("->")
		b.WriteString(r)
	}
}

func describeProjection(b *strings.Builder, p Projection) {
	switch pp := p.(type) {
	case LabelProjection:
		b.WriteString(pp.Label)
	case FieldProjection:
		b.WriteString(pp.Label)
		b.WriteString(".")
		b.WriteString(pp.Field)
	case TimeProjection:
		b.WriteString("@")
		b.WriteString(pp.Label)
	case CompositeProjection:
		b.WriteString("{ ")
		for i, e := range pp.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.Name)
			b.WriteString(" = ")
			describeProjection(b, e.Value)
		}
		b.WriteString(" }")
	case *Specification:
		if len(pp.Givens) == 0 {
			describeNestedForm(b, pp)
		} else {
			describeGivensForm(b, pp)
		}
	}
}
