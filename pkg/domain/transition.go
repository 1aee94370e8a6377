package domain

import (
	"fmt"
	"sync"

	"github.com/aretw0/traverse/pkg/async"
)

// TransitionState is the tagged state of a Transition.
type TransitionState int

const (
	// TransitionPending: created, not yet committed or rejected.
	TransitionPending TransitionState = iota
	// TransitionCommitted: the entry-list mutation is applied and the
	// current pointer updated.
	TransitionCommitted
	// TransitionFinished: all post-commit sub-operations resolved.
	// Terminal success.
	TransitionFinished
	// TransitionRejected: terminal failure, from pending or committed.
	TransitionRejected
)

func (s TransitionState) String() string {
	switch s {
	case TransitionPending:
		return "pending"
	case TransitionCommitted:
		return "committed"
	case TransitionFinished:
		return "finished"
	case TransitionRejected:
		return "rejected"
	default:
		return fmt.Sprintf("TransitionState(%d)", int(s))
	}
}

// Terminal reports whether the state admits no further transitions.
func (s TransitionState) Terminal() bool {
	return s == TransitionFinished || s == TransitionRejected
}

// RollbackFunc restores the navigator to the snapshot captured when the
// transition was created.
type RollbackFunc func() error

// TransitionConfig describes one navigation attempt.
type TransitionConfig struct {
	NavigationType NavigationType
	From           *Entry
	To             *Entry
	Info           any
	Rollback       RollbackFunc
}

// Transition is the per-navigation-attempt object: target entry,
// navigation kind, rollback callback, the set of caller-registered
// pending sub-operations, and the commit/finish lifecycle.
//
// It becomes garbage once its finished (or rejected) future has been
// observed by all listeners.
type Transition struct {
	navType  NavigationType
	from     *Entry
	to       *Entry
	info     any
	rollback RollbackFunc

	committed *async.Deferred[*Entry]
	finished  *async.Deferred[*Entry]
	signal    *async.Signal

	mu      sync.Mutex
	state   TransitionState
	pending []*async.Future[struct{}]
}

// NewTransition creates a pending transition.
func NewTransition(cfg TransitionConfig) *Transition {
	return &Transition{
		navType:   cfg.NavigationType,
		from:      cfg.From,
		to:        cfg.To,
		info:      cfg.Info,
		rollback:  cfg.Rollback,
		committed: async.NewDeferred[*Entry](),
		finished:  async.NewDeferred[*Entry](),
		signal:    async.NewSignal(),
	}
}

// State returns the current lifecycle state.
func (t *Transition) State() TransitionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// NavigationType returns the navigation kind of this attempt.
func (t *Transition) NavigationType() NavigationType { return t.navType }

// From returns the entry that was current when the transition was
// created; nil on a first navigation.
func (t *Transition) From() *Entry { return t.from }

// To returns the target entry.
func (t *Transition) To() *Entry { return t.to }

// Info returns the caller payload passed to the originating operation.
func (t *Transition) Info() any { return t.info }

// Committed resolves once the entry-list mutation and same-document
// event delivery complete.
func (t *Transition) Committed() *async.Future[*Entry] { return t.committed.Future() }

// Finished resolves once the full protocol, including caller
// sub-operations, completes.
func (t *Transition) Finished() *async.Future[*Entry] { return t.finished.Future() }

// Signal returns the transition's abort signal.
func (t *Transition) Signal() *async.Signal { return t.signal }

// Abort fires the abort signal. Cancellation is advisory: code already
// past its last checkpoint runs to completion, but Register fails
// immediately afterwards.
func (t *Transition) Abort(reason error) bool {
	if reason == nil {
		reason = ErrAborted
	}
	return t.signal.Abort(reason)
}

// Register adds a caller sub-operation the transition must await before
// finishing. It fails once the transition is aborted or terminal.
func (t *Transition) Register(f *async.Future[struct{}]) error {
	if err := t.signal.Err(); err != nil {
		return fmt.Errorf("%w: transition aborted", ErrAborted)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return fmt.Errorf("%w: transition already %s", ErrInvalidOperation, t.state)
	}
	t.pending = append(t.pending, f)
	return nil
}

// TakePending drains the current batch of registered sub-operations.
// The engine loops on it until no new registrations appear, since
// awaited work may itself register more work.
func (t *Transition) TakePending() []*async.Future[struct{}] {
	t.mu.Lock()
	defer t.mu.Unlock()
	batch := t.pending
	t.pending = nil
	return batch
}

// MarkCommitted moves pending → committed and resolves the committed
// future with the target entry.
func (t *Transition) MarkCommitted() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case TransitionPending:
		t.state = TransitionCommitted
		t.committed.Resolve(t.to)
		return nil
	case TransitionCommitted, TransitionFinished, TransitionRejected:
		return fmt.Errorf("%w: cannot commit %s transition", ErrInvalidOperation, t.state)
	default:
		return fmt.Errorf("%w: unknown transition state %d", ErrInvalidOperation, int(t.state))
	}
}

// MarkFinished moves committed → finished and resolves the finished
// future.
func (t *Transition) MarkFinished() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case TransitionCommitted:
		t.state = TransitionFinished
		t.finished.Resolve(t.to)
		return nil
	case TransitionPending, TransitionFinished, TransitionRejected:
		return fmt.Errorf("%w: cannot finish %s transition", ErrInvalidOperation, t.state)
	default:
		return fmt.Errorf("%w: unknown transition state %d", ErrInvalidOperation, int(t.state))
	}
}

// Reject moves the transition to its terminal failure state and settles
// both futures with err. Rejecting an already-terminal transition is an
// invalid operation.
func (t *Transition) Reject(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case TransitionPending, TransitionCommitted:
		t.state = TransitionRejected
		t.committed.Reject(err)
		t.finished.Reject(err)
		return nil
	case TransitionFinished, TransitionRejected:
		return fmt.Errorf("%w: cannot reject %s transition", ErrInvalidOperation, t.state)
	default:
		return fmt.Errorf("%w: unknown transition state %d", ErrInvalidOperation, int(t.state))
	}
}

// Rollback invokes the captured rollback callback.
func (t *Transition) Rollback() error {
	if t.rollback == nil {
		return nil
	}
	return t.rollback()
}
