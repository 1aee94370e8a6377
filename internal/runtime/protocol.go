package runtime

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/traverse/pkg/domain"
)

// run executes the multi-phase commit protocol for one transition. It is
// invoked by the chain goroutine only after the previous chained work has
// settled, so at most one run is active at a time.
func (e *Engine) run(t *domain.Transition) {
	start := e.clock.Now()
	e.clock.Mark("transition:" + string(t.NavigationType()) + ":start")

	// The disposal sweep is guaranteed on every exit path, including
	// protocol errors and rollback.
	defer e.sweep()

	if err := t.Signal().Err(); err != nil {
		e.reject(t, err)
		return
	}

	to := t.To()

	// Phase 1: pre-navigation events.
	if from := t.From(); from != nil {
		if err := e.dispatch(from, e.event(domain.EventNavigateFrom, t, nil)); err != nil {
			e.reject(t, err)
			return
		}
	}
	if err := e.dispatch(nil, e.event(domain.EventNavigate, t, nil)); err != nil {
		e.reject(t, err)
		return
	}

	// Last cancellation checkpoint: past this point the transition runs
	// to completion, though new sub-operation registrations still fail.
	if err := t.Signal().Err(); err != nil {
		e.reject(t, err)
		return
	}

	// Phase 2: guarded mutation of the shared entry list.
	if err := e.applyMutation(t); err != nil {
		e.reject(t, err)
		return
	}

	// Phase 3: post-mutation events.
	if to.SameDocument() {
		if err := e.dispatch(nil, e.event(domain.EventCurrentChange, t, nil)); err != nil {
			e.reject(t, err)
			return
		}
	}
	if err := e.dispatch(to, e.event(domain.EventNavigateTo, t, nil)); err != nil {
		e.reject(t, err)
		return
	}
	if err := t.MarkCommitted(); err != nil {
		e.reject(t, err)
		return
	}
	e.sweep()

	// Phase 4: drain caller sub-operations. Awaited work may register
	// more work; loop until no new registrations appear.
	for {
		batch := t.TakePending()
		if len(batch) == 0 {
			break
		}
		for _, f := range batch {
			<-f.Done()
			if _, err, _ := f.Result(); err != nil {
				e.reject(t, err)
				return
			}
		}
	}

	// Phase 5: finish.
	if err := e.dispatch(to, e.event(domain.EventFinish, t, nil)); err != nil {
		e.reject(t, err)
		return
	}
	// The success notification fires before the finished future resolves,
	// so a waiter observing settlement sees every listener already run.
	if err := e.dispatch(nil, e.event(domain.EventNavigateSuccess, t, nil)); err != nil {
		e.logger.Warn("navigatesuccess listener failed", "err", err)
	}
	if err := t.MarkFinished(); err != nil {
		e.reject(t, err)
		return
	}

	end := e.clock.Now()
	e.clock.Measure("transition:"+string(t.NavigationType()), start, end)
	e.logger.Debug("transition finished",
		"type", t.NavigationType(),
		"url", to.URL(),
		"index", e.CurrentIndex(),
	)

	e.clearActive(t)
}

// applyMutation applies the entry-list mutation for the transition's
// kind inside the single-flight critical section. No partial state is
// observable outside it.
func (e *Engine) applyMutation(t *domain.Transition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Defensive single-flight check: two concurrent mutation phases mean
	// the serialization chain is broken, which is unrecoverable.
	if n := e.inFlight.Inc(); n > 1 {
		panic(fmt.Sprintf("traverse: %d transitions in mutation phase, serialization broken", n))
	}
	defer e.inFlight.Dec()

	to := t.To()
	switch t.NavigationType() {
	case domain.NavigatePush:
		return e.pushLocked(to)
	case domain.NavigateReplace:
		// Replacing with no current entry behaves as a push.
		if e.currentIndex < 0 {
			return e.pushLocked(to)
		}
		return e.replaceLocked(e.currentIndex, to)
	case domain.NavigateTraverse:
		idx := e.indexOfKeyLocked(to.Key())
		if idx < 0 {
			return fmt.Errorf("%w: no entry with key %s", domain.ErrInvalidOperation, to.Key())
		}
		if err := e.replaceLocked(idx, to); err != nil {
			return err
		}
		e.currentIndex = idx
		return nil
	case domain.NavigateReload, domain.NavigateUpdate:
		// Resolve the slot by key at mutation time: a chained earlier
		// transition may have moved or dropped it.
		idx := e.indexOfKeyLocked(to.Key())
		if idx < 0 {
			return fmt.Errorf("%w: entry with key %s left the sequence", domain.ErrInvalidOperation, to.Key())
		}
		return e.replaceLocked(idx, to)
	default:
		return fmt.Errorf("%w: cannot apply %q mutation", domain.ErrInvalidOperation, t.NavigationType())
	}
}

// pushLocked truncates forward history and appends the entry. Dropped
// entries are disposed by the following sweep.
func (e *Engine) pushLocked(to *domain.Entry) error {
	if idx := e.indexOfIDLocked(to.ID()); idx >= 0 {
		return fmt.Errorf("%w: entry %s already present at index %d", domain.ErrInvalidOperation, to.ID(), idx)
	}
	keep := e.currentIndex + 1
	e.entries = append(e.entries[:keep:keep], to)
	e.currentIndex = len(e.entries) - 1
	e.known[to.Key()] = to

	if e.maxEntries > 0 && len(e.entries) > e.maxEntries {
		e.entries = slices.Clone(e.entries[len(e.entries)-e.maxEntries:])
		e.currentIndex = len(e.entries) - 1
	}
	return nil
}

// replaceLocked swaps the entry at idx in place. The replacement shares
// the slot's key for reload/traverse/update clones; a replace navigation
// brings a new key and the old one is swept.
func (e *Engine) replaceLocked(idx int, to *domain.Entry) error {
	if dup := e.indexOfIDLocked(to.ID()); dup >= 0 {
		return fmt.Errorf("%w: entry %s already present at index %d", domain.ErrInvalidOperation, to.ID(), dup)
	}
	e.entries[idx] = to
	e.known[to.Key()] = to
	return nil
}

// reject runs the failure path: rollback (unless the transition's own
// kind is a rollback or the failure is a precondition violation),
// settle both futures exactly once, emit navigateerror.
// Invalid-operation errors raised for an already-terminal transition
// are idempotent no-ops.
func (e *Engine) reject(t *domain.Transition, err error) {
	if t.State().Terminal() {
		if errors.Is(err, domain.ErrInvalidOperation) {
			return
		}
		e.logger.Debug("ignoring late error for settled transition", "err", err)
		return
	}

	// Invalid-operation failures never applied their mutation, so there
	// is nothing to undo. Restoring the accept-time snapshot here would
	// erase work committed by an earlier chained transition.
	if t.NavigationType() != domain.NavigateRollback && !errors.Is(err, domain.ErrInvalidOperation) {
		if rbErr := t.Rollback(); rbErr != nil {
			// Escalated: the navigation state is corrupt and callers are
			// expected to reset the engine.
			e.logger.Error("rollback failed", "type", t.NavigationType(), "err", rbErr)
			err = fmt.Errorf("%w: %v (while handling: %v)", domain.ErrRollbackFailed, rbErr, err)
		}
	}

	e.sweep() // dispose entries the rollback discarded

	// navigateerror fires before the futures reject, mirroring the
	// success path's event-then-settle ordering.
	ev := e.event(domain.EventNavigateError, t, err)
	if dErr := e.dispatch(nil, ev); dErr != nil {
		e.logger.Warn("navigateerror listener failed", "err", dErr)
	}

	if rejErr := t.Reject(err); rejErr != nil {
		e.logger.Debug("transition settled concurrently", "err", rejErr)
		return
	}

	e.logger.Info("transition rejected", "type", t.NavigationType(), "err", err)
	e.clearActive(t)
}

// sweep computes known − entries (by key) and fires a disposal
// notification, exactly once, for every entry that left reachability.
func (e *Engine) sweep() {
	e.mu.Lock()
	reachable := make(map[string]struct{}, len(e.entries))
	for _, cur := range e.entries {
		reachable[cur.Key()] = struct{}{}
	}
	var dropped []*domain.Entry
	for key, entry := range e.known {
		if _, ok := reachable[key]; !ok {
			delete(e.known, key)
			dropped = append(dropped, entry)
		}
	}
	e.mu.Unlock()

	for _, d := range dropped {
		if !d.MarkDisposed() {
			continue
		}
		ev := &domain.Event{Type: domain.EventDispose, Entry: d}
		if err := e.dispatch(d, ev); err != nil {
			e.logger.Warn("dispose listener failed", "entry", d.ID(), "err", err)
		}
	}
}

// dispatch delivers the event to the affected entry (when given) and to
// the navigator's listeners for that type: bounded fan-out, no wildcard
// rebroadcast. All listeners run; the first error wins.
func (e *Engine) dispatch(target *domain.Entry, ev *domain.Event) error {
	var first error
	if target != nil {
		if err := target.Dispatch(ev); err != nil {
			first = err
		}
	}

	e.lmu.Lock()
	hs := slices.Clone(e.listeners[ev.Type])
	e.lmu.Unlock()

	for _, h := range hs {
		if h == nil {
			continue
		}
		if err := h(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// event builds one lifecycle notification. Pre-finish events accept
// "wait for me too" sub-operation registrations.
func (e *Engine) event(kind domain.EventType, t *domain.Transition, err error) *domain.Event {
	ev := &domain.Event{
		Type:           kind,
		Entry:          t.To(),
		From:           t.From(),
		NavigationType: t.NavigationType(),
		Info:           t.Info(),
		Err:            err,
		Signal:         t.Signal(),
	}
	switch kind {
	case domain.EventNavigate, domain.EventNavigateFrom, domain.EventNavigateTo, domain.EventCurrentChange:
		ev.Registrar = t
	}
	return ev
}

func (e *Engine) clearActive(t *domain.Transition) {
	e.mu.Lock()
	if e.active == t {
		e.active = nil
	}
	e.mu.Unlock()
}
