package runtime

import (
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/traverse/pkg/async"
	"github.com/aretw0/traverse/pkg/domain"
)

// Navigate creates a fresh entry with push (or replace) semantics and
// enqueues it. Failures after acceptance are reported only through the
// returned futures.
func (e *Engine) Navigate(url string, opts domain.NavigateOptions) (domain.Result, error) {
	navType := domain.NavigatePush
	if opts.Replace {
		navType = domain.NavigateReplace
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	to := domain.NewEntry(domain.EntryConfig{
		URL:            url,
		SameDocument:   opts.SameDocument,
		State:          opts.State,
		NavigationType: navType,
		Index:          e.indexOf,
	})
	return e.enqueueLocked(e.newTransitionLocked(navType, to, opts.Info)), nil
}

// Back clones the previous entry as a traversal and enqueues it.
func (e *Engine) Back(opts domain.TraverseOptions) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentIndex < 1 {
		return domain.Result{}, fmt.Errorf("%w: no previous entry", domain.ErrInvalidOperation)
	}
	to := e.entries[e.currentIndex-1].Clone(domain.NavigateTraverse)
	return e.enqueueLocked(e.newTransitionLocked(domain.NavigateTraverse, to, opts.Info)), nil
}

// Forward clones the next entry as a traversal and enqueues it.
func (e *Engine) Forward(opts domain.TraverseOptions) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentIndex < 0 || e.currentIndex >= len(e.entries)-1 {
		return domain.Result{}, fmt.Errorf("%w: no next entry", domain.ErrInvalidOperation)
	}
	to := e.entries[e.currentIndex+1].Clone(domain.NavigateTraverse)
	return e.enqueueLocked(e.newTransitionLocked(domain.NavigateTraverse, to, opts.Info)), nil
}

// TraverseTo clones the entry with the given key as a traversal and
// enqueues it.
func (e *Engine) TraverseTo(key string, opts domain.TraverseOptions) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOfKeyLocked(key)
	if idx < 0 {
		return domain.Result{}, fmt.Errorf("%w: no entry with key %s", domain.ErrInvalidOperation, key)
	}
	to := e.entries[idx].Clone(domain.NavigateTraverse)
	return e.enqueueLocked(e.newTransitionLocked(domain.NavigateTraverse, to, opts.Info)), nil
}

// Reload clones the current entry as a reload and enqueues it.
func (e *Engine) Reload(opts domain.TraverseOptions) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentIndex < 0 {
		return domain.Result{}, fmt.Errorf("%w: no current entry", domain.ErrInvalidOperation)
	}
	to := e.entries[e.currentIndex].Clone(domain.NavigateReload)
	return e.enqueueLocked(e.newTransitionLocked(domain.NavigateReload, to, opts.Info)), nil
}

// UpdateCurrent clones the current entry with a replacement state
// payload. Unlike every other kind, accepting it does not abort a
// concurrently in-flight transition; it still waits its turn in the
// serialized chain.
func (e *Engine) UpdateCurrent(opts domain.UpdateOptions) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.currentIndex < 0 {
		return domain.Result{}, fmt.Errorf("%w: no current entry", domain.ErrInvalidOperation)
	}
	to := e.entries[e.currentIndex].CloneWithState(domain.NavigateUpdate, opts.State)
	return e.enqueueLocked(e.newTransitionLocked(domain.NavigateUpdate, to, nil)), nil
}

// newTransitionLocked builds the per-attempt object, capturing the
// rollback snapshot of entries/currentIndex/known at creation time.
func (e *Engine) newTransitionLocked(navType domain.NavigationType, to *domain.Entry, info any) *domain.Transition {
	var from *domain.Entry
	if e.currentIndex >= 0 && e.currentIndex < len(e.entries) {
		from = e.entries[e.currentIndex]
	}
	return domain.NewTransition(domain.TransitionConfig{
		NavigationType: navType,
		From:           from,
		To:             to,
		Info:           info,
		Rollback:       e.rollbackFuncLocked(),
	})
}

// rollbackFuncLocked snapshots the shared state and returns a callback
// restoring it byte-identically.
func (e *Engine) rollbackFuncLocked() domain.RollbackFunc {
	snapEntries := slices.Clone(e.entries)
	snapIndex := e.currentIndex
	snapKnown := maps.Clone(e.known)
	return func() error {
		if snapIndex >= len(snapEntries) || (len(snapEntries) > 0 && snapIndex < 0) {
			return fmt.Errorf("%w: corrupt snapshot index %d for %d entries", domain.ErrInvalidOperation, snapIndex, len(snapEntries))
		}
		e.mu.Lock()
		e.entries = slices.Clone(snapEntries)
		e.currentIndex = snapIndex
		known := maps.Clone(snapKnown)
		// Carry forward entries the snapshot predates, the failed
		// transition's own target included, so the following sweep can
		// dispose the ones the rollback discarded.
		for key, cur := range e.known {
			if _, ok := known[key]; !ok {
				known[key] = cur
			}
		}
		e.known = known
		e.mu.Unlock()
		return nil
	}
}

// enqueueLocked chains the transition onto the tail of the pending work
// and signals cancellation on the superseded in-flight transition
// (except for update-in-place). Prior chain errors are swallowed at the
// link so one failure never poisons subsequent transitions.
func (e *Engine) enqueueLocked(t *domain.Transition) domain.Result {
	prev := e.tail
	link := async.NewDeferred[struct{}]()
	e.tail = link.Future()

	if t.NavigationType() != domain.NavigateUpdate && e.active != nil {
		e.active.Abort(fmt.Errorf("%w: superseded by %s navigation", domain.ErrAborted, t.NavigationType()))
	}
	e.active = t

	go func() {
		defer link.Resolve(struct{}{})
		<-prev.Done()
		e.run(t)
	}()

	return domain.Result{Committed: t.Committed(), Finished: t.Finished()}
}

func (e *Engine) indexOfIDLocked(id string) int {
	for i, cur := range e.entries {
		if cur.ID() == id {
			return i
		}
	}
	return -1
}

func (e *Engine) indexOfKeyLocked(key string) int {
	for i, cur := range e.entries {
		if cur.Key() == key {
			return i
		}
	}
	return -1
}
