package spec

import "fmt"

// parser is a hand-written recursive-descent parser for the textual
// specification grammar in spec.md §6.
type parser struct {
	toks []token
	idx  int
}

// Parse parses a specification from its textual form into an AST. Parse
// performs only syntactic analysis; call Build (or Validate) with a schema
// to enforce connectedness, type coherence, and given-order visibility.
func Parse(src string) (*Specification, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	s, err := p.parseSpecification()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errorf("unexpected trailing input at %s", p.cur())
	}
	return s, nil
}

// Build parses src and validates the result against schema, returning a
// *BuildError for any invariant violation.
func Build(src string, schema *Schema) (*Specification, error) {
	s, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := Validate(s, schema); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) cur() token {
	if p.idx >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.idx]
}

func (p *parser) atEOF() bool {
	return p.cur().kind == tokEOF
}

func (p *parser) advance() token {
	t := p.cur()
	if p.idx < len(p.toks)-1 {
		p.idx++
	}
	return t
}

func (p *parser) peekAt(offset int) token {
	i := p.idx + offset
	if i >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[i]
}

func (p *parser) expect(k tokenKind) (token, error) {
	if p.cur().kind != k {
		return token{}, p.errorf("expected %s, found %s", describeKind(k), p.cur())
	}
	return p.advance(), nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("spec: parse error at position %d: %s", p.cur().pos, fmt.Sprintf(format, args...))
}

// parseSpecification parses "(" givens ")" "{" matches "}" ["=>" projection].
func (p *parser) parseSpecification() (*Specification, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	givens, err := p.parseGivens()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	matches, err := p.parseMatchesBlock()
	if err != nil {
		return nil, err
	}

	s := &Specification{Givens: givens, Matches: matches}
	if p.cur().kind == tokFatArrow {
		p.advance()
		proj, err := p.parseProjection()
		if err != nil {
			return nil, err
		}
		s.Projection = proj
	}
	return s, nil
}

// parseNestedSpec parses the shorthand nested-projection form used as a
// projection or a composite entry: "{" matches "}" ["=>" projection], with no
// leading givens clause (the enclosing tuple supplies them implicitly).
func (p *parser) parseNestedSpec() (*Specification, error) {
	matches, err := p.parseMatchesBlock()
	if err != nil {
		return nil, err
	}
	s := &Specification{Matches: matches}
	if p.cur().kind == tokFatArrow {
		p.advance()
		proj, err := p.parseProjection()
		if err != nil {
			return nil, err
		}
		s.Projection = proj
	}
	return s, nil
}

func (p *parser) parseGivens() ([]LabeledGiven, error) {
	var out []LabeledGiven
	if p.cur().kind == tokRParen {
		return out, nil
	}
	for {
		g, err := p.parseLabeledGiven()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *parser) parseLabeledGiven() (LabeledGiven, error) {
	label, err := p.expect(tokIdent)
	if err != nil {
		return LabeledGiven{}, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return LabeledGiven{}, err
	}
	typ, err := p.parseType()
	if err != nil {
		return LabeledGiven{}, err
	}
	var conds []Condition
	if p.cur().kind == tokLBracket {
		conds, err = p.parseConditionsBlock()
		if err != nil {
			return LabeledGiven{}, err
		}
	}
	return LabeledGiven{Label: label.text, Type: typ, Conditions: conds}, nil
}

func (p *parser) parseMatchesBlock() ([]Match, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var out []Match
	for p.cur().kind == tokIdent {
		m, err := p.parseMatch()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseMatch() (Match, error) {
	label, err := p.expect(tokIdent)
	if err != nil {
		return Match{}, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return Match{}, err
	}
	typ, err := p.parseType()
	if err != nil {
		return Match{}, err
	}
	conds, err := p.parseConditionsBlock()
	if err != nil {
		return Match{}, err
	}
	return Match{Label: label.text, Type: typ, Conditions: conds}, nil
}

func (p *parser) parseConditionsBlock() ([]Condition, error) {
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	var out []Condition
	for p.cur().kind != tokRBracket {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		if p.cur().kind == tokComma {
			p.advance()
		}
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	return out, nil
}

// parseCondition parses either a path or an existential condition. An
// existential starts with IDENT "E" or BANG IDENT("E"); a path starts with
// a label IDENT followed eventually by "=".
func (p *parser) parseCondition() (Condition, error) {
	if p.cur().kind == tokBang {
		p.advance()
		return p.parseExistential(false)
	}
	if p.cur().kind == tokIdent && p.cur().text == "E" && p.peekAt(1).kind == tokLBrace {
		p.advance()
		return p.parseExistential(true)
	}
	return p.parsePath()
}

func (p *parser) parseExistential(exists bool) (ExistentialCondition, error) {
	if exists {
		// already consumed the leading "E"; nothing else to do.
	} else {
		if _, err := p.expect(tokIdent); err != nil { // "E" after "!"
			return ExistentialCondition{}, err
		}
	}
	matches, err := p.parseMatchesBlock()
	if err != nil {
		return ExistentialCondition{}, err
	}
	return ExistentialCondition{Exists: exists, Matches: matches}, nil
}

func (p *parser) parsePath() (PathCondition, error) {
	leftLabel, err := p.expect(tokIdent)
	if err != nil {
		return PathCondition{}, err
	}
	leftRoles, err := p.parseOptionalRoleChain()
	if err != nil {
		return PathCondition{}, err
	}
	if _, err := p.expect(tokEquals); err != nil {
		return PathCondition{}, err
	}
	rightLabel, err := p.expect(tokIdent)
	if err != nil {
		return PathCondition{}, err
	}
	rightRoles, err := p.parseOptionalRoleChain()
	if err != nil {
		return PathCondition{}, err
	}
	return PathCondition{
		LeftLabel: leftLabel.text, LeftRoles: leftRoles,
		RightLabel: rightLabel.text, RightRoles: rightRoles,
	}, nil
}

func (p *parser) parseOptionalRoleChain() ([]string, error) {
	var roles []string
	for p.cur().kind == tokArrow {
		p.advance()
		role, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role.text)
	}
	return roles, nil
}

// parseType parses a dotted type name: IDENT { "." IDENT }.
func (p *parser) parseType() (string, error) {
	first, err := p.expect(tokIdent)
	if err != nil {
		return "", err
	}
	name := first.text
	for p.cur().kind == tokDot {
		p.advance()
		next, err := p.expect(tokIdent)
		if err != nil {
			return "", err
		}
		name += "." + next.text
	}
	return name, nil
}

// parseProjection parses one projection: a label, a field reference, a
// time marker, a nested specification, or a composite.
func (p *parser) parseProjection() (Projection, error) {
	switch p.cur().kind {
	case tokAt:
		p.advance()
		label, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		return TimeProjection{Label: label.text}, nil
	case tokLParen:
		return p.parseSpecification()
	case tokLBrace:
		return p.parseBraceProjection()
	case tokIdent:
		label, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if p.cur().kind == tokDot {
			p.advance()
			field, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			return FieldProjection{Label: label.text, Field: field.text}, nil
		}
		return LabelProjection{Label: label.text}, nil
	default:
		return nil, p.errorf("expected projection, found %s", p.cur())
	}
}

// parseBraceProjection disambiguates "{" matches "}" [=> projection]
// (nested sub-spec shorthand) from "{" name "=" projection, ... "}"
// (composite) by looking at the token following the first identifier.
func (p *parser) parseBraceProjection() (Projection, error) {
	if p.cur().kind != tokLBrace {
		return nil, p.errorf("expected '{', found %s", p.cur())
	}
	// IDENT COLON -> nested spec (match syntax); IDENT EQUALS -> composite.
	if p.peekAt(1).kind == tokIdent && p.peekAt(2).kind == tokColon {
		return p.parseNestedSpec()
	}
	return p.parseComposite()
}

func (p *parser) parseComposite() (CompositeProjection, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return CompositeProjection{}, err
	}
	var entries []CompositeEntry
	for p.cur().kind != tokRBrace {
		name, err := p.expect(tokIdent)
		if err != nil {
			return CompositeProjection{}, err
		}
		if _, err := p.expect(tokEquals); err != nil {
			return CompositeProjection{}, err
		}
		value, err := p.parseProjection()
		if err != nil {
			return CompositeProjection{}, err
		}
		entries = append(entries, CompositeEntry{Name: name.text, Value: value})
		if p.cur().kind == tokComma {
			p.advance()
		}
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return CompositeProjection{}, err
	}
	return CompositeProjection{Entries: entries}, nil
}
