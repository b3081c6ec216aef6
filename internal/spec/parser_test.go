package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimplePredecessorQuery(t *testing.T) {
	src := `(u: User) { c: Company [ c->creator = u ] } => c`
	s, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, s.Givens, 1)
	assert.Equal(t, "u", s.Givens[0].Label)
	assert.Equal(t, "User", s.Givens[0].Type)
	require.Len(t, s.Matches, 1)
	assert.Equal(t, "Company", s.Matches[0].Type)
	require.Len(t, s.Matches[0].Conditions, 1)
	path, ok := s.Matches[0].Conditions[0].(PathCondition)
	require.True(t, ok)
	assert.Equal(t, []string{"creator"}, path.LeftRoles)
	proj, ok := s.Projection.(LabelProjection)
	require.True(t, ok)
	assert.Equal(t, "c", proj.Label)
}

func TestParseDottedTypeName(t *testing.T) {
	src := `(o: Office) { c: Office.Closed [ c->office = o ] } => c`
	s, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "Office.Closed", s.Matches[0].Type)
}

func TestParseFieldProjection(t *testing.T) {
	src := `(c: Company) { } => c.identifier`
	s, err := Parse(src)
	require.NoError(t, err)
	proj, ok := s.Projection.(FieldProjection)
	require.True(t, ok)
	assert.Equal(t, "c", proj.Label)
	assert.Equal(t, "identifier", proj.Field)
}

func TestParseTimeProjection(t *testing.T) {
	src := `(c: Company) { } => @c`
	s, err := Parse(src)
	require.NoError(t, err)
	proj, ok := s.Projection.(TimeProjection)
	require.True(t, ok)
	assert.Equal(t, "c", proj.Label)
}

func TestParseNegativeExistential(t *testing.T) {
	src := `(o: Office) {
		c: Office.Closed [
			c->office = o,
			!E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`
	s, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, s.Matches[0].Conditions, 2)
	ex, ok := s.Matches[0].Conditions[1].(ExistentialCondition)
	require.True(t, ok)
	assert.False(t, ex.Exists)
	require.Len(t, ex.Matches, 1)
	assert.Equal(t, "Office.Reopened", ex.Matches[0].Type)
}

func TestParsePositiveExistential(t *testing.T) {
	src := `(o: Office) {
		c: Office.Closed [
			c->office = o,
			E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`
	s, err := Parse(src)
	require.NoError(t, err)
	ex, ok := s.Matches[0].Conditions[1].(ExistentialCondition)
	require.True(t, ok)
	assert.True(t, ex.Exists)
}

func TestParseNestedSpecProjection(t *testing.T) {
	src := `(o: Office) { } => {
		managers = { m: Manager [ m->office = o ] } => m.employeeNumber
	}`
	s, err := Parse(src)
	require.NoError(t, err)
	comp, ok := s.Projection.(CompositeProjection)
	require.True(t, ok)
	require.Len(t, comp.Entries, 1)
	assert.Equal(t, "managers", comp.Entries[0].Name)
	nested, ok := comp.Entries[0].Value.(*Specification)
	require.True(t, ok)
	assert.Empty(t, nested.Givens)
	require.Len(t, nested.Matches, 1)
	assert.Equal(t, "Manager", nested.Matches[0].Type)
	fp, ok := nested.Projection.(FieldProjection)
	require.True(t, ok)
	assert.Equal(t, "employeeNumber", fp.Field)
}

func TestParseCompositeProjectionMultipleEntries(t *testing.T) {
	src := `(c: Company) { } => { name = c.identifier, at = @c }`
	s, err := Parse(src)
	require.NoError(t, err)
	comp, ok := s.Projection.(CompositeProjection)
	require.True(t, ok)
	require.Len(t, comp.Entries, 2)
	assert.Equal(t, "name", comp.Entries[0].Name)
	assert.Equal(t, "at", comp.Entries[1].Name)
}

func TestParseRoleChainMultiStep(t *testing.T) {
	src := `(co: Company) { m: Manager [ m->office->company = co ] } => m`
	s, err := Parse(src)
	require.NoError(t, err)
	path, ok := s.Matches[0].Conditions[0].(PathCondition)
	require.True(t, ok)
	assert.Equal(t, []string{"office", "company"}, path.LeftRoles)
}

func TestParseMultipleGivens(t *testing.T) {
	src := `(u: User, c: Company [ c->creator = u ]) { } => c`
	s, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, s.Givens, 2)
	assert.Equal(t, "c", s.Givens[1].Label)
	require.Len(t, s.Givens[1].Conditions, 1)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := Parse(`(u: User) { } => u extra`)
	assert.Error(t, err)
}

func TestParseRejectsMalformedGrammar(t *testing.T) {
	_, err := Parse(`(u: User { }`)
	assert.Error(t, err)
}

func TestBuildRejectsDisconnectedSpecification(t *testing.T) {
	schema := DefaultOfficeSchema()
	src := `(u: User) { c: Company [ ] }`
	_, err := Build(src, schema)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, DisconnectedSpecification, be.Kind)
}

func TestBuildRejectsTypeMismatch(t *testing.T) {
	schema := DefaultOfficeSchema()
	src := `(u: User) { c: Company [ c->creator = u ] } => c.identifier`
	// valid baseline should build cleanly
	_, err := Build(src, schema)
	require.NoError(t, err)

	badSrc := `(o: Office) { c: Company [ c->creator = o ] }`
	_, err = Build(badSrc, schema)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, TypeMismatchInRole, be.Kind)
}

func TestBuildRejectsForwardGivenReference(t *testing.T) {
	schema := DefaultOfficeSchema()
	src := `(c: Company [ c->creator = u ], u: User) { }`
	_, err := Build(src, schema)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ForwardGivenReference, be.Kind)
}
