package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/aretw0/traverse/internal/logging"
	"github.com/aretw0/traverse/pkg/async"
	"github.com/aretw0/traverse/pkg/domain"
	"github.com/aretw0/traverse/pkg/ports"
)

// Engine owns the entry sequence, the current-index pointer, the set of
// known entries and the single serialized chain of pending transitions.
// It runs the multi-phase commit protocol.
//
// Exactly one transition may execute its mutation phase at a time; the
// inFlight gauge asserts that defensively.
type Engine struct {
	logger     *slog.Logger
	clock      ports.Clock
	maxEntries int

	mu           sync.Mutex // guards entries, currentIndex, known, active, tail
	entries      []*domain.Entry
	currentIndex int
	known        map[string]*domain.Entry // by entry key
	active       *domain.Transition
	tail         *async.Future[struct{}]

	inFlight atomic.Int32

	lmu       sync.Mutex
	listeners map[domain.EventType][]domain.Handler
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger for transition lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the timing source used for transition measurements.
func WithClock(clock ports.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithMaxEntries bounds the history length. Pushing past the cap drops
// the oldest entry; the disposal sweep notifies it. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(e *Engine) {
		e.maxEntries = n
	}
}

// NewEngine creates an empty navigation engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:       logging.NewNop(),
		clock:        ports.NopClock{},
		currentIndex: -1,
		known:        make(map[string]*domain.Entry),
		tail:         async.Resolved(struct{}{}),
		listeners:    make(map[domain.EventType][]domain.Handler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On registers a navigator-scoped listener. It returns a removal
// function.
func (e *Engine) On(t domain.EventType, h domain.Handler) func() {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	e.listeners[t] = append(e.listeners[t], h)
	idx := len(e.listeners[t]) - 1
	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()
		hs := e.listeners[t]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

// Entries returns a copy of the current history sequence.
func (e *Engine) Entries() []*domain.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// CurrentEntry returns the current entry, or nil while the sequence is
// empty.
func (e *Engine) CurrentEntry() *domain.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentIndex < 0 || e.currentIndex >= len(e.entries) {
		return nil
	}
	return e.entries[e.currentIndex]
}

// CurrentIndex returns the position of the current entry, or -1 while
// the sequence is empty.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// ActiveTransition returns the most recently accepted transition that
// has not settled, or nil.
func (e *Engine) ActiveTransition() *domain.Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// indexOf is handed to every entry the engine creates so Entry.Index can
// resolve lazily. Detached entries resolve to -1.
func (e *Engine) indexOf(entry *domain.Entry) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.entries {
		if cur.ID() == entry.ID() {
			return i
		}
	}
	return -1
}

// Snapshot captures the entry sequence and current pointer in a
// serializable form.
func (e *Engine) Snapshot() *domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	recs := make([]domain.EntryRecord, len(e.entries))
	for i, cur := range e.entries {
		recs[i] = cur.Record()
	}
	return &domain.Snapshot{Entries: recs, CurrentIndex: e.currentIndex}
}

// Restore replaces the live sequence with the snapshot's. Entries that
// drop out of reachability are disposed through the usual sweep.
func (e *Engine) Restore(snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", domain.ErrInvalidOperation)
	}
	if err := snap.Validate(); err != nil {
		return err
	}

	entries := make([]*domain.Entry, len(snap.Entries))
	known := make(map[string]*domain.Entry, len(snap.Entries))
	for i, rec := range snap.Entries {
		ent := domain.NewEntry(domain.EntryConfig{
			ID:             rec.ID,
			Key:            rec.Key,
			URL:            rec.URL,
			SameDocument:   rec.SameDocument,
			State:          rec.State,
			NavigationType: rec.NavigationType,
			Index:          e.indexOf,
		})
		entries[i] = ent
		known[rec.Key] = ent
	}

	e.mu.Lock()
	// Carry forward previously known entries so the sweep can dispose
	// the ones the restore discarded.
	for key, old := range e.known {
		if _, ok := known[key]; !ok {
			known[key] = old
		}
	}
	e.entries = entries
	e.currentIndex = snap.CurrentIndex
	e.known = known
	e.mu.Unlock()

	e.sweep()
	e.logger.Debug("restored snapshot", "entries", len(entries), "current_index", snap.CurrentIndex)
	return nil
}
