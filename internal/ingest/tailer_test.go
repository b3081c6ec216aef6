package ingest

// Unlike internal/observe, this package does not run under goleak:
// fsnotify spawns platform-specific internal goroutines goleak cannot
// reliably account for, the same reason the teacher's own fsnotify
// watcher tests skip it.

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"factgraph/internal/fact"
	"factgraph/internal/store"
)

func writeLine(t *testing.T, f *os.File, env fact.Envelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	_, err = f.Write(append(data, '\n'))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
}

func newUser(publicKey string) fact.Envelope {
	return fact.Envelope{Record: fact.NewRecord("User", nil, map[string]fact.Scalar{
		"publicKey": fact.StringValue(publicKey),
	})}
}

func TestTailerDrainsAlreadyPresentLinesOnStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	writeLine(t, f, newUser("key-1"))
	require.NoError(t, f.Close())

	m := store.NewMemory()
	tailer, err := NewTailer(path, m, 30*time.Millisecond, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, tailer.Start(ctx))
	defer tailer.Stop()

	exist, err := m.WhichExist(ctx, []fact.Reference{newUser("key-1").Reference()})
	require.NoError(t, err)
	require.True(t, exist[newUser("key-1").Reference()])
}

func TestTailerPicksUpAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	defer f.Close()

	m := store.NewMemory()
	var savedCount int
	tailer, err := NewTailer(path, m, 30*time.Millisecond, func(refs []fact.Reference) {
		savedCount += len(refs)
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, tailer.Start(ctx))
	defer tailer.Stop()

	writeLine(t, f, newUser("key-2"))

	deadline := time.Now().Add(2 * time.Second)
	ref := newUser("key-2").Reference()
	for time.Now().Before(deadline) {
		exist, err := m.WhichExist(ctx, []fact.Reference{ref})
		require.NoError(t, err)
		if exist[ref] {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("fact appended to the log was never saved")
}

func TestTailerSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte("not json\n"))
	require.NoError(t, err)
	writeLine(t, f, newUser("key-3"))
	require.NoError(t, f.Close())

	m := store.NewMemory()
	tailer, err := NewTailer(path, m, 30*time.Millisecond, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, tailer.Start(ctx))
	defer tailer.Stop()

	ref := newUser("key-3").Reference()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		exist, err := m.WhichExist(ctx, []fact.Reference{ref})
		require.NoError(t, err)
		if exist[ref] {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("the well-formed fact after a malformed line was never saved")
}
