package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsConnectedSpecification(t *testing.T) {
	schema := DefaultOfficeSchema()
	s, err := Parse(`(u: User) { c: Company [ c->creator = u ] } => c`)
	require.NoError(t, err)
	assert.NoError(t, Validate(s, schema))
}

func TestValidateAcceptsExistentialIntroducedLabels(t *testing.T) {
	schema := DefaultOfficeSchema()
	s, err := Parse(`(o: Office) {
		c: Office.Closed [
			c->office = o,
			!E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`)
	require.NoError(t, err)
	assert.NoError(t, Validate(s, schema))
}

func TestValidateAcceptsNestedProjectionConnectedThroughOuterGiven(t *testing.T) {
	schema := DefaultOfficeSchema()
	s, err := Parse(`(o: Office) { } => { managers = { m: Manager [ m->office = o ] } => m.employeeNumber }`)
	require.NoError(t, err)
	assert.NoError(t, Validate(s, schema))
}

func TestValidateRejectsUnknownRoleOnType(t *testing.T) {
	schema := DefaultOfficeSchema()
	s, err := Parse(`(u: User) { c: Company [ c->nonexistentRole = u ] }`)
	require.NoError(t, err)
	err = Validate(s, schema)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, TypeMismatchInRole, be.Kind)
}

func TestValidateDisconnectedReportsBothSubgraphs(t *testing.T) {
	schema := DefaultOfficeSchema()
	s, err := Parse(`(u: User) { c: Company [ ] }`)
	require.NoError(t, err)
	err = Validate(s, schema)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, DisconnectedSpecification, be.Kind)
	assert.Len(t, be.Details, 2)
}

func TestValidateForwardReferenceWithinExistentialIsAllowed(t *testing.T) {
	schema := DefaultOfficeSchema()
	// The existential's own locally-introduced label "r" may be referenced
	// by its own path condition even though "r" is declared inside the
	// same existential block as the condition that uses it.
	s, err := Parse(`(o: Office) {
		c: Office.Closed [
			c->office = o,
			E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`)
	require.NoError(t, err)
	assert.NoError(t, Validate(s, schema))
}
