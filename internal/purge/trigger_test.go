package purge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factgraph/internal/fact"
	"factgraph/internal/observe"
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

func newManager(office fact.Reference, employeeNumber float64) fact.Envelope {
	return fact.Envelope{Record: fact.NewRecord("Manager", map[string]fact.PredecessorValue{
		"office": fact.Single(office),
	}, map[string]fact.Scalar{"employeeNumber": fact.NumberValue(employeeNumber)})}
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

// TestRunnerPurgesDescendantsExceptReopenChain covers spec.md §8's
// purge-compliance scenario end to end: saving an Office.Reopened fact
// purges the descendants of its Office.Closed root other than the
// Office.Reopened trigger itself, so both the root and the trigger
// survive. The Manager hangs off the Office, not the Office.Closed root,
// so it is outside the purged subtree.
func TestRunnerPurgesDescendantsExceptReopenChain(t *testing.T) {
	m, _, office := setupOfficeGraph(t)
	ctx := context.Background()

	closed, err := m.Save(ctx, []fact.Envelope{newOfficeClosed(office)})
	require.NoError(t, err)
	_, err = m.Save(ctx, []fact.Envelope{newManager(office, 1001)})
	require.NoError(t, err)

	qr := query.NewRunner(m, 4)
	runner := NewRunner(ctx, m, qr, []Declaration{officeClosedDecl}, nil)
	defer runner.Stop()

	reopened, err := m.Save(ctx, []fact.Envelope{newOfficeReopened(closed[0])})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var loaded map[fact.Reference]fact.Record
	for time.Now().Before(deadline) {
		loaded, err = m.Load(ctx, []fact.Reference{closed[0]})
		require.NoError(t, err)
		if _, stillPresent := loaded[closed[0]]; !stillPresent {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	loaded, err = m.Load(ctx, []fact.Reference{closed[0], reopened[0]})
	require.NoError(t, err)
	_, closedSurvived := loaded[closed[0]]
	_, reopenedSurvived := loaded[reopened[0]]
	require.True(t, closedSurvived, "the purge root itself is never removed by PurgeDescendants")
	require.True(t, reopenedSurvived, "the keep fact must survive its own purge")
}

// TestPurgeReachesActiveObserverRemoveCallback confirms SPEC_FULL.md's
// resolution of the "does purge drive remove callbacks on active
// observers" open question: a store Purge/PurgeDescendants delta reaches
// internal/observe the same way a Save delta does, withdrawing any
// already-dispatched tuple that named the removed fact.
func TestPurgeReachesActiveObserverRemoveCallback(t *testing.T) {
	m, _, office := setupOfficeGraph(t)
	ctx := context.Background()

	_, err := m.Save(ctx, []fact.Envelope{newManager(office, 1001)})
	require.NoError(t, err)

	sp, err := spec.Parse(`(o: Office) { m: Manager [ m->office = o ] } => m`)
	require.NoError(t, err)

	var mu sync.Mutex
	removed := 0
	obs, err := observe.NewObserver(m, query.NewRunner(m, 4), sp, []fact.Reference{office}, nil)
	require.NoError(t, err)
	obs.Subscribe(func(observe.Delivery) observe.RemoveCallback {
		return func() {
			mu.Lock()
			removed++
			mu.Unlock()
		}
	})
	require.NoError(t, obs.Start(ctx))
	defer obs.Stop()

	_, err = m.PurgeDescendants(ctx, office, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := removed
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, removed, "purging the office's descendants must withdraw the manager the observer had dispatched")
}
