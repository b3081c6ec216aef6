package invert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factgraph/internal/fact"
	"factgraph/internal/query"
	"factgraph/internal/spec"
	"factgraph/internal/store"
)

func newUser(publicKey string) fact.Envelope {
	return fact.Envelope{Record: fact.NewRecord("User", nil, map[string]fact.Scalar{
		"publicKey": fact.StringValue(publicKey),
	})}
}

func newCompany(creator fact.Reference, identifier string) fact.Envelope {
	return fact.Envelope{Record: fact.NewRecord("Company", map[string]fact.PredecessorValue{
		"creator": fact.Single(creator),
	}, map[string]fact.Scalar{"identifier": fact.StringValue(identifier)})}
}

func newOffice(company fact.Reference, identifier string) fact.Envelope {
	return fact.Envelope{Record: fact.NewRecord("Office", map[string]fact.PredecessorValue{
		"company": fact.Single(company),
	}, map[string]fact.Scalar{"identifier": fact.StringValue(identifier)})}
}

func newOfficeClosed(office fact.Reference) fact.Envelope {
	return fact.Envelope{Record: fact.NewRecord("Office.Closed", map[string]fact.PredecessorValue{
		"office": fact.Single(office),
	}, nil)}
}

func newOfficeReopened(closed fact.Reference) fact.Envelope {
	return fact.Envelope{Record: fact.NewRecord("Office.Reopened", map[string]fact.PredecessorValue{
		"officeClosed": fact.Single(closed),
	}, nil)}
}

func setupOfficeGraph(t *testing.T) (store.Store, fact.Reference, fact.Reference) {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	u, err := m.Save(ctx, []fact.Envelope{newUser("key-1")})
	require.NoError(t, err)
	c, err := m.Save(ctx, []fact.Envelope{newCompany(u[0], "acme")})
	require.NoError(t, err)
	o, err := m.Save(ctx, []fact.Envelope{newOffice(c[0], "hq")})
	require.NoError(t, err)
	return m, c[0], o[0]
}

func inverseByType(t *testing.T, inverses []Inverse, typeName string) []Inverse {
	t.Helper()
	var out []Inverse
	for _, inv := range inverses {
		require.Len(t, inv.InverseSpecification.Givens, 1)
		if inv.InverseSpecification.Givens[0].Type == typeName {
			out = append(out, inv)
		}
	}
	return out
}

func TestInvertSimpleMatchEmitsAddInverse(t *testing.T) {
	forward, err := spec.Parse(`(o: Office) { c: Office.Closed [ c->office = o ] }`)
	require.NoError(t, err)

	inverses, err := Invert(forward)
	require.NoError(t, err)

	closedInverses := inverseByType(t, inverses, "Office.Closed")
	require.Len(t, closedInverses, 1)
	inv := closedInverses[0]
	assert.Equal(t, OpAdd, inv.Operation)
	assert.Equal(t, []string{"o"}, inv.GivenSubset)
	assert.Equal(t, []string{"c"}, inv.ResultSubset)

	m, _, office := setupOfficeGraph(t)
	ctx := context.Background()
	closed, err := m.Save(ctx, []fact.Envelope{newOfficeClosed(office)})
	require.NoError(t, err)

	r := query.NewRunner(m, 4)
	results, err := r.Run(ctx, inv.InverseSpecification, []fact.Reference{closed[0]})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, office, results[0].Tuple["o"])
	assert.Equal(t, closed[0], results[0].Tuple["c"])
}

func TestInvertNegativeExistentialEmitsRemoveAndMaybeAddPair(t *testing.T) {
	forward, err := spec.Parse(`(o: Office) {
		c: Office.Closed [
			c->office = o,
			!E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`)
	require.NoError(t, err)

	inverses, err := Invert(forward)
	require.NoError(t, err)

	reopenedInverses := inverseByType(t, inverses, "Office.Reopened")
	require.Len(t, reopenedInverses, 2)

	var ops []Operation
	for _, inv := range reopenedInverses {
		assert.Equal(t, []string{"c"}, inv.ResultSubset)
		ops = append(ops, inv.Operation)
	}
	assert.ElementsMatch(t, []Operation{OpRemove, OpMaybeAdd}, ops)

	closedInverses := inverseByType(t, inverses, "Office.Closed")
	require.Len(t, closedInverses, 1)
	assert.Equal(t, OpAdd, closedInverses[0].Operation)

	var removeInv Inverse
	for _, inv := range reopenedInverses {
		if inv.Operation == OpRemove {
			removeInv = inv
		}
	}

	m, _, office := setupOfficeGraph(t)
	ctx := context.Background()
	closed, err := m.Save(ctx, []fact.Envelope{newOfficeClosed(office)})
	require.NoError(t, err)
	reopened, err := m.Save(ctx, []fact.Envelope{newOfficeReopened(closed[0])})
	require.NoError(t, err)

	// The reopened fact's own arrival is the witness that the outer
	// tuple should now be removed; the remove inverse must still walk
	// back to it even though re-checking the original !E would fail.
	r := query.NewRunner(m, 4)
	results, err := r.Run(ctx, removeInv.InverseSpecification, []fact.Reference{reopened[0]})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, closed[0], results[0].Tuple["c"])
	assert.Equal(t, office, results[0].Tuple["o"])
}

func TestInvertPositiveExistentialEmitsOnlyMaybeAdd(t *testing.T) {
	forward, err := spec.Parse(`(o: Office) {
		c: Office.Closed [
			c->office = o,
			E { r: Office.Reopened [ r->officeClosed = c ] }
		]
	} => c`)
	require.NoError(t, err)

	inverses, err := Invert(forward)
	require.NoError(t, err)

	reopenedInverses := inverseByType(t, inverses, "Office.Reopened")
	require.Len(t, reopenedInverses, 1)
	assert.Equal(t, OpMaybeAdd, reopenedInverses[0].Operation)
	assert.Equal(t, []string{"c"}, reopenedInverses[0].ResultSubset)
}

func TestInvertSelfInverseDoesNotIntroduceOwnResultLabel(t *testing.T) {
	forward, err := spec.Parse(`(o: Office) {
		c: Office.Closed [ c->office = o ]
		co: Company [ o->company = co ]
	} => { c = c, co = co }`)
	require.NoError(t, err)

	inverses, err := Invert(forward)
	require.NoError(t, err)

	companyInverses := inverseByType(t, inverses, "Company")
	require.Len(t, companyInverses, 1)
	// co is reached purely by walking the "company" role forward from the
	// already-bound o, not by a new fact referencing c — its resultSubset
	// collapses to the scope it extends rather than appending its own label.
	assert.Equal(t, []string{"c"}, companyInverses[0].ResultSubset)
}

func TestInvertNestedProjectionComposesResultSubsetPath(t *testing.T) {
	forward, err := spec.Parse(`(o: Office) { } => { managers = {
		m: Manager [
			m->office = o,
			!E { t: Manager.Terminated [ t->manager = m ] }
		]
	} => m }`)
	require.NoError(t, err)

	inverses, err := Invert(forward)
	require.NoError(t, err)

	managerInverses := inverseByType(t, inverses, "Manager")
	require.Len(t, managerInverses, 1)
	assert.Equal(t, []string{"managers"}, managerInverses[0].Path)
	assert.Equal(t, OpAdd, managerInverses[0].Operation)
	assert.Equal(t, []string{"m"}, managerInverses[0].ResultSubset)

	// The inner !E lives inside a nested projection reached through a
	// composite entry ("managers"); its remove/maybeAdd pair must still
	// carry that composite's path and the nested scope's own resultSubset,
	// not the outer specification's.
	terminatedInverses := inverseByType(t, inverses, "Manager.Terminated")
	require.Len(t, terminatedInverses, 2)
	var ops []Operation
	for _, inv := range terminatedInverses {
		assert.Equal(t, []string{"managers"}, inv.Path)
		assert.Equal(t, []string{"m"}, inv.ResultSubset)
		ops = append(ops, inv.Operation)
	}
	assert.ElementsMatch(t, []Operation{OpRemove, OpMaybeAdd}, ops)
}

func TestInvertMultiStepRoleChainJoinReDerivesGiven(t *testing.T) {
	forward, err := spec.Parse(`(co: Company) { m: Manager [ m->office->company = co ] } => m`)
	require.NoError(t, err)

	inverses, err := Invert(forward)
	require.NoError(t, err)

	managerInverses := inverseByType(t, inverses, "Manager")
	require.Len(t, managerInverses, 1)
	inv := managerInverses[0]
	assert.Equal(t, []string{"co"}, inv.GivenSubset)
	assert.Equal(t, []string{"m"}, inv.ResultSubset)

	m, company, office := setupOfficeGraph(t)
	ctx := context.Background()
	mgr, err := m.Save(ctx, []fact.Envelope{{Record: fact.NewRecord("Manager", map[string]fact.PredecessorValue{
		"office": fact.Single(office),
	}, map[string]fact.Scalar{"employeeNumber": fact.NumberValue(1001)})}})
	require.NoError(t, err)

	r := query.NewRunner(m, 4)
	results, err := r.Run(ctx, inv.InverseSpecification, []fact.Reference{mgr[0]})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, company, results[0].Tuple["co"])
	assert.Equal(t, mgr[0], results[0].Tuple["m"])
}
