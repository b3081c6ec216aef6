package observe

import (
	"context"
	"fmt"
	"sync"

	"factgraph/internal/fact"
	"factgraph/internal/query"
	"factgraph/internal/spec"
	"factgraph/internal/store"
)

// Manager owns the lifecycle of many independent observers concurrently,
// grounded directly on the teacher's BackgroundObserverManager: a
// mutex-protected map of named observer state, a context.CancelFunc +
// sync.WaitGroup for clean shutdown, and an error-callback registry drained
// under lock before invocation so user callbacks never run while holding
// the manager's mutex. Each Observer still serializes its own dispatch
// loop; Manager only coordinates registration, shutdown, and late-given
// re-reads (spec.md §4.G.6, §4.G.7).
type Manager struct {
	mu        sync.RWMutex
	observers map[string]*Observer
	callbacks []ErrorSink

	lateGivens map[fact.Reference][]*Observer

	removeListener func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewManager constructs a Manager bound to store s. s is used only to
// register the manager's own late-given-detection listener; the manager
// keeps no reference to it, and StartObserver takes the store each new
// observer runs against as an explicit argument.
func NewManager(s store.Store) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		observers:  make(map[string]*Observer),
		lateGivens: make(map[fact.Reference][]*Observer),
		ctx:        ctx,
		cancel:     cancel,
	}
	m.removeListener = s.AddSpecificationListener(m.onStoreEvent)
	return m
}

// AddErrorSink registers cb to receive every CallbackError/StorageError
// raised by any observer this manager owns.
func (m *Manager) AddErrorSink(cb ErrorSink) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.mu.Unlock()
}

// StartObserver derives sp's inverses, starts an observer under name, and
// registers it for late-given tracking if any given is initially absent.
// name must be unique among observers currently registered with m.
func (m *Manager) StartObserver(ctx context.Context, name string, s store.Store, runner *query.Runner, sp *spec.Specification, givens []fact.Reference) (*Observer, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("observe: manager stopped")
	}
	if _, exists := m.observers[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("observe: observer %q already registered", name)
	}
	m.mu.Unlock()

	obs, err := NewObserver(s, runner, sp, givens, m.fanOutError)
	if err != nil {
		return nil, err
	}
	if err := obs.Start(ctx); err != nil {
		return nil, err
	}

	m.Register(name, obs, givens)
	return obs, nil
}

// ErrorSink returns the fan-out sink a caller building an observer
// outside of StartObserver (to install slot handlers between NewObserver
// and Start) should pass to NewObserver, so errors still reach every sink
// added via AddErrorSink.
func (m *Manager) ErrorSink() ErrorSink {
	return m.fanOutError
}

// Register records an already-started observer under name and, if it came
// up passive, enrolls it in the late-given registry. Split out from
// StartObserver so a caller that needs to install slot handlers between
// NewObserver and Start (handlers must be in place before the dispatch
// loop begins) can do so and still get manager-tracked lifecycle and
// late-given support.
func (m *Manager) Register(name string, obs *Observer, givens []fact.Reference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[name] = obs
	if obs.Passive() {
		for _, g := range givens {
			m.lateGivens[g] = append(m.lateGivens[g], obs)
		}
	}
}

// Observer returns the named observer, or nil if none is registered.
func (m *Manager) Observer(name string) *Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.observers[name]
}

// StopObserver stops and deregisters the named observer.
func (m *Manager) StopObserver(name string) {
	m.mu.Lock()
	obs, ok := m.observers[name]
	if ok {
		delete(m.observers, name)
	}
	m.mu.Unlock()
	if ok {
		obs.Stop()
	}
}

// Stop stops every observer the manager owns and its own store listener.
// Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	observers := make([]*Observer, 0, len(m.observers))
	for _, obs := range m.observers {
		observers = append(observers, obs)
	}
	m.observers = make(map[string]*Observer)
	m.lateGivens = make(map[fact.Reference][]*Observer)
	m.mu.Unlock()

	if m.removeListener != nil {
		m.removeListener()
	}
	m.cancel()
	for _, obs := range observers {
		obs.Stop()
	}
	m.wg.Wait()
}

// onStoreEvent is the manager's own store listener, used purely to detect
// when a given reference a passive observer is waiting on has arrived —
// separate from each Observer's own per-type inverse listener, since a
// given's type has no relation to the inverses derived from its
// specification's matches.
func (m *Manager) onStoreEvent(ev store.ListenerEvent) {
	for _, ref := range ev.Saved {
		m.mu.Lock()
		waiting := m.lateGivens[ref]
		delete(m.lateGivens, ref)
		m.mu.Unlock()

		for _, obs := range waiting {
			obs := obs
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				if err := obs.RetryLateGiven(m.ctx); err != nil {
					m.fanOutError(&StorageError{Err: err})
				}
			}()
		}
	}
}

func (m *Manager) fanOutError(err error) {
	m.mu.RLock()
	callbacks := make([]ErrorSink, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	for _, cb := range callbacks {
		cb(err)
	}
}
