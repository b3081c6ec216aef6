// Package ingest watches a newline-delimited-JSON fact log for appended
// envelopes and saves them into a store as they land, demonstrating the
// late-given re-read path (spec.md §4.G.5) against a real external
// writer instead of a direct in-process Save call. This is a
// demonstration harness layered on the core library, not part of its
// contract — every core package remains fully usable without it.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"factgraph/internal/fact"
	"factgraph/internal/logging"
	"factgraph/internal/store"
)

// Tailer watches one fact-log file and replays newly-appended envelopes
// into a store, debouncing rapid writes the same way the teacher's
// mangle file watcher debounces rapid saves.
type Tailer struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	store    store.Store
	debounce time.Duration
	offset   int64
	pending  bool
	running  bool

	onSaved func([]fact.Reference)

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewTailer constructs a Tailer for path against s. onSaved, if non-nil,
// is invoked with every batch of references newly saved from a drain. The
// tailer itself has no dependency on internal/observe: an observer
// manager sharing s learns of the saved facts through its own store
// listener, which is how factgraphctl's watch command (passing nil here)
// gets late-given re-reads.
func NewTailer(path string, s store.Store, debounce time.Duration, onSaved func([]fact.Reference)) (*Tailer, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Tailer{
		watcher:  w,
		path:     path,
		store:    s,
		debounce: debounce,
		onSaved:  onSaved,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches path's directory (fsnotify on most platforms reports
// renames/creates at the directory level, not the file), drains whatever
// is already present, then launches the debounced event loop.
// Non-blocking.
func (t *Tailer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	t.mu.Unlock()

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := t.watcher.Add(dir); err != nil {
		return err
	}

	if err := t.drain(ctx); err != nil {
		logging.IngestError("initial drain of %s: %v", t.path, err)
	}

	go t.run(ctx)
	return nil
}

// Stop halts the event loop and closes the underlying fsnotify watcher.
// Idempotent.
func (t *Tailer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()

	close(t.stopCh)
	<-t.doneCh
	_ = t.watcher.Close()
}

func (t *Tailer) run(ctx context.Context) {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t.mu.Lock()
			t.pending = true
			t.mu.Unlock()
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			logging.IngestError("watcher error on %s: %v", t.path, err)
		case <-ticker.C:
			t.mu.Lock()
			pending := t.pending
			t.pending = false
			t.mu.Unlock()
			if !pending {
				continue
			}
			if err := t.drain(ctx); err != nil {
				logging.IngestError("drain %s: %v", t.path, err)
			}
		}
	}
}

// drain reads every envelope appended since the last recorded offset and
// saves it. A line that fails to parse is logged and skipped rather than
// aborting the batch — malformed input is a data problem, not grounds to
// bring the watcher down (spec.md §7).
func (t *Tailer) drain(ctx context.Context) error {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	t.mu.Lock()
	offset := t.offset
	t.mu.Unlock()

	if _, err := f.Seek(offset, 0); err != nil {
		return err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var envelopes []fact.Envelope
	var consumed int64
	for scanner.Scan() {
		line := scanner.Bytes()
		consumed += int64(len(line)) + 1
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var env fact.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			logging.IngestWarn("skipping malformed fact-log line in %s: %v", t.path, err)
			continue
		}
		envelopes = append(envelopes, env)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.offset = offset + consumed
	t.mu.Unlock()

	if len(envelopes) == 0 {
		return nil
	}
	saved, err := t.store.Save(ctx, envelopes)
	if err != nil {
		return err
	}
	logging.Ingest("saved %d fact(s) tailed from %s", len(saved), t.path)
	if t.onSaved != nil {
		t.onSaved(saved)
	}
	return nil
}
