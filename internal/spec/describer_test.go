package spec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRoundTrip(t *testing.T, src string) *Specification {
	t.Helper()
	s, err := Parse(src)
	require.NoError(t, err)
	described := Describe(s)
	reparsed, err := Parse(described)
	require.NoError(t, err, "describe produced unparseable text: %s", described)
	if diff := cmp.Diff(s, reparsed); diff != "" {
		t.Fatalf("round trip changed the AST (-original +reparsed):\n%s\ndescribed form was: %s", diff, described)
	}
	return reparsed
}

func TestDescribeRoundTripThroughDescribeAgain(t *testing.T) {
	s := assertRoundTrip(t, `(o: Office) {
		c: Office.Closed [
			c->office = o,
			!E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`)
	again, err := Parse(Describe(s))
	require.NoError(t, err)
	if diff := cmp.Diff(s, again); diff != "" {
		t.Fatalf("describing twice is not idempotent (-first +second):\n%s", diff)
	}
}

func TestRoundTripSimplePredecessorQuery(t *testing.T) {
	assertRoundTrip(t, `(u: User) { c: Company [ c->creator = u ] } => c`)
}

func TestRoundTripNegativeExistential(t *testing.T) {
	assertRoundTrip(t, `(o: Office) {
		c: Office.Closed [
			c->office = o,
			!E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`)
}

func TestRoundTripPositiveExistential(t *testing.T) {
	assertRoundTrip(t, `(o: Office) {
		c: Office.Closed [
			c->office = o,
			E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`)
}

func TestRoundTripCompositeProjection(t *testing.T) {
	assertRoundTrip(t, `(c: Company) { } => { name = c.identifier, at = @c }`)
}

func TestRoundTripNestedSpecProjection(t *testing.T) {
	assertRoundTrip(t, `(o: Office) { } => { managers = { m: Manager [ m->office = o ] } => m.employeeNumber }`)
}

func TestRoundTripMultiStepRoleChain(t *testing.T) {
	assertRoundTrip(t, `(co: Company) { m: Manager [ m->office->company = co ] } => m`)
}

func TestRoundTripMultipleGivensWithCondition(t *testing.T) {
	assertRoundTrip(t, `(u: User, c: Company [ c->creator = u ]) { } => c`)
}

func TestDescribeFieldProjection(t *testing.T) {
	s, err := Parse(`(c: Company) { } => c.identifier`)
	require.NoError(t, err)
	assert.Contains(t, Describe(s), "c.identifier")
}

func TestDescribeTimeProjection(t *testing.T) {
	s, err := Parse(`(c: Company) { } => @c`)
	require.NoError(t, err)
	assert.Contains(t, Describe(s), "@c")
}
