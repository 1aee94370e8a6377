package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/traverse/pkg/domain"
)

func wait(t *testing.T, res domain.Result) (*domain.Entry, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry, err := res.Finished.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("transition did not settle in time")
	}
	return entry, err
}

func mustNavigate(t *testing.T, e *Engine, url string) *domain.Entry {
	t.Helper()
	res, err := e.Navigate(url, domain.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate(%s) rejected synchronously: %v", url, err)
	}
	entry, err := wait(t, res)
	if err != nil {
		t.Fatalf("Navigate(%s) failed: %v", url, err)
	}
	return entry
}

func urls(entries []*domain.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.URL()
	}
	return out
}

func TestEngine_NavigateBackForward(t *testing.T) {
	e := NewEngine()

	mustNavigate(t, e, "/a")
	mustNavigate(t, e, "/b")
	mustNavigate(t, e, "/c")

	if got := e.CurrentIndex(); got != 2 {
		t.Fatalf("expected index 2, got %d", got)
	}

	res, err := e.Back(domain.TraverseOptions{})
	if err != nil {
		t.Fatalf("Back rejected: %v", err)
	}
	entry, err := wait(t, res)
	if err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if entry.URL() != "/b" || e.CurrentIndex() != 1 {
		t.Fatalf("expected /b at index 1, got %s at %d", entry.URL(), e.CurrentIndex())
	}

	res, err = e.Forward(domain.TraverseOptions{})
	if err != nil {
		t.Fatalf("Forward rejected: %v", err)
	}
	entry, err = wait(t, res)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if entry.URL() != "/c" || e.CurrentIndex() != 2 {
		t.Fatalf("expected /c at index 2, got %s at %d", entry.URL(), e.CurrentIndex())
	}

	// Traversal replaces the slot with a clone: same key, fresh identity.
	if len(e.Entries()) != 3 {
		t.Fatalf("expected 3 entries, got %v", urls(e.Entries()))
	}
}

func TestEngine_PushTruncatesForwardHistory(t *testing.T) {
	e := NewEngine()

	mustNavigate(t, e, "/a")
	mustNavigate(t, e, "/b")
	mustNavigate(t, e, "/c")

	res, _ := e.Back(domain.TraverseOptions{})
	if _, err := wait(t, res); err != nil {
		t.Fatalf("Back failed: %v", err)
	}

	disposed := make(chan string, 8)
	e.On(domain.EventDispose, func(ev *domain.Event) error {
		disposed <- ev.Entry.URL()
		return nil
	})

	mustNavigate(t, e, "/d")

	got := urls(e.Entries())
	want := []string{"/a", "/b", "/d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	select {
	case url := <-disposed:
		if url != "/c" {
			t.Fatalf("expected /c disposed, got %s", url)
		}
	case <-time.After(time.Second):
		t.Fatal("truncated entry was never disposed")
	}
}

func TestEngine_ReplaceOnEmptyActsAsPush(t *testing.T) {
	e := NewEngine()

	res, err := e.Navigate("/a", domain.NavigateOptions{Replace: true})
	if err != nil {
		t.Fatalf("replace on empty rejected: %v", err)
	}
	entry, err := wait(t, res)
	if err != nil {
		t.Fatalf("replace on empty failed: %v", err)
	}
	if entry.URL() != "/a" || e.CurrentIndex() != 0 {
		t.Fatalf("expected /a at index 0, got %s at %d", entry.URL(), e.CurrentIndex())
	}
}

func TestEngine_Replace(t *testing.T) {
	e := NewEngine()

	first := mustNavigate(t, e, "/a")

	disposed := make(chan string, 1)
	e.On(domain.EventDispose, func(ev *domain.Event) error {
		disposed <- ev.Entry.ID()
		return nil
	})

	res, _ := e.Navigate("/b", domain.NavigateOptions{Replace: true})
	if _, err := wait(t, res); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	if got := urls(e.Entries()); len(got) != 1 || got[0] != "/b" {
		t.Fatalf("expected single /b entry, got %v", got)
	}

	// The replaced entry carries a different key, so it leaves
	// reachability and must be disposed.
	select {
	case id := <-disposed:
		if id != first.ID() {
			t.Fatalf("expected %s disposed, got %s", first.ID(), id)
		}
	case <-time.After(time.Second):
		t.Fatal("replaced entry was never disposed")
	}
}

func TestEngine_SynchronousRejections(t *testing.T) {
	e := NewEngine()

	if _, err := e.Back(domain.TraverseOptions{}); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("Back on empty: expected ErrInvalidOperation, got %v", err)
	}
	if _, err := e.Forward(domain.TraverseOptions{}); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("Forward on empty: expected ErrInvalidOperation, got %v", err)
	}
	if _, err := e.Reload(domain.TraverseOptions{}); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("Reload on empty: expected ErrInvalidOperation, got %v", err)
	}
	if _, err := e.UpdateCurrent(domain.UpdateOptions{}); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("UpdateCurrent on empty: expected ErrInvalidOperation, got %v", err)
	}
	if _, err := e.TraverseTo("missing", domain.TraverseOptions{}); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("TraverseTo unknown key: expected ErrInvalidOperation, got %v", err)
	}

	mustNavigate(t, e, "/a")
	if _, err := e.Back(domain.TraverseOptions{}); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("Back at index 0: expected ErrInvalidOperation, got %v", err)
	}
	if _, err := e.Forward(domain.TraverseOptions{}); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("Forward at tail: expected ErrInvalidOperation, got %v", err)
	}
}

func TestEngine_ListenerErrorRollsBack(t *testing.T) {
	e := NewEngine()

	mustNavigate(t, e, "/a")

	boom := errors.New("load failed")
	remove := e.On(domain.EventNavigate, func(ev *domain.Event) error {
		return boom
	})
	defer remove()

	errEvents := make(chan error, 1)
	e.On(domain.EventNavigateError, func(ev *domain.Event) error {
		errEvents <- ev.Err
		return nil
	})

	res, err := e.Navigate("/b", domain.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate rejected synchronously: %v", err)
	}
	if _, err := wait(t, res); !errors.Is(err, boom) {
		t.Fatalf("expected listener error through the future, got %v", err)
	}

	// Rolled back to the pre-transition state.
	if got := urls(e.Entries()); len(got) != 1 || got[0] != "/a" {
		t.Fatalf("expected rollback to [/a], got %v", got)
	}
	if e.CurrentIndex() != 0 {
		t.Fatalf("expected index 0 after rollback, got %d", e.CurrentIndex())
	}

	select {
	case err := <-errEvents:
		if !errors.Is(err, boom) {
			t.Fatalf("navigateerror carried %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("navigateerror never fired")
	}

	// Both futures settled with the same failure.
	if _, err, ok := res.Committed.Result(); !ok || !errors.Is(err, boom) {
		t.Fatalf("committed future: ok=%v err=%v", ok, err)
	}
}

func TestEngine_QueuedUpdateRejectionKeepsCommittedWork(t *testing.T) {
	e := NewEngine()
	mustNavigate(t, e, "/a")

	// Hold the replace in its pre-mutation phase so the update is
	// accepted while /a is still current.
	release := make(chan struct{})
	e.On(domain.EventNavigate, func(ev *domain.Event) error {
		if ev.Entry.URL() == "/b" {
			<-release
		}
		return nil
	})

	rep, err := e.Navigate("/b", domain.NavigateOptions{Replace: true})
	if err != nil {
		t.Fatalf("Navigate rejected: %v", err)
	}
	upd, err := e.UpdateCurrent(domain.UpdateOptions{State: "stale"})
	if err != nil {
		t.Fatalf("UpdateCurrent rejected: %v", err)
	}
	close(release)

	if _, err := wait(t, rep); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	// The replace dropped /a's key, so the update's slot lookup fails.
	if _, err := wait(t, upd); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}

	// A precondition failure never mutated anything; it must not restore
	// its accept-time snapshot over the committed replace.
	if got := urls(e.Entries()); len(got) != 1 || got[0] != "/b" {
		t.Fatalf("expected committed [/b] to survive, got %v", got)
	}
	if e.CurrentIndex() != 0 {
		t.Fatalf("expected index 0, got %d", e.CurrentIndex())
	}
}

func TestEngine_RollbackDisposesFailedTarget(t *testing.T) {
	e := NewEngine()
	mustNavigate(t, e, "/a")

	boom := errors.New("load failed")
	remove := e.On(domain.EventNavigateTo, func(ev *domain.Event) error {
		if ev.Entry.URL() == "/b" {
			return boom
		}
		return nil
	})
	defer remove()

	disposed := make(chan *domain.Entry, 2)
	e.On(domain.EventDispose, func(ev *domain.Event) error {
		disposed <- ev.Entry
		return nil
	})

	res, _ := e.Navigate("/b", domain.NavigateOptions{})
	if _, err := wait(t, res); !errors.Is(err, boom) {
		t.Fatalf("expected listener error, got %v", err)
	}
	if got := urls(e.Entries()); len(got) != 1 || got[0] != "/a" {
		t.Fatalf("expected rollback to [/a], got %v", got)
	}

	// The failed target entered the sequence during the mutation and the
	// rollback discarded it, so it leaves through the sweep like any
	// other unreachable entry.
	select {
	case entry := <-disposed:
		if entry.URL() != "/b" {
			t.Fatalf("expected /b disposed, got %s", entry.URL())
		}
		if !entry.Disposed() {
			t.Fatal("disposed entry must report Disposed")
		}
	case <-time.After(time.Second):
		t.Fatal("failed target was never disposed")
	}
}

func TestEngine_InterceptAwaitedBeforeFinish(t *testing.T) {
	e := NewEngine()

	release := make(chan struct{})
	loaded := false
	e.On(domain.EventNavigate, func(ev *domain.Event) error {
		return ev.Intercept(func(ctx context.Context) error {
			<-release
			loaded = true
			return nil
		})
	})

	res, err := e.Navigate("/a", domain.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate rejected: %v", err)
	}

	// Committed resolves without waiting for the sub-operation.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := res.Committed.Wait(ctx); err != nil {
		t.Fatalf("Committed failed: %v", err)
	}
	if res.Finished.Settled() {
		t.Fatal("Finished settled before the sub-operation completed")
	}

	close(release)
	if _, err := wait(t, res); err != nil {
		t.Fatalf("Finished failed: %v", err)
	}
	if !loaded {
		t.Fatal("sub-operation did not run to completion")
	}
}

func TestEngine_InterceptErrorRejects(t *testing.T) {
	e := NewEngine()
	mustNavigate(t, e, "/a")

	boom := errors.New("fetch failed")
	remove := e.On(domain.EventNavigate, func(ev *domain.Event) error {
		return ev.Intercept(func(ctx context.Context) error {
			return boom
		})
	})
	defer remove()

	res, _ := e.Navigate("/b", domain.NavigateOptions{})
	if _, err := wait(t, res); !errors.Is(err, boom) {
		t.Fatalf("expected sub-operation error, got %v", err)
	}

	// The mutation had committed, so rejection rolls it back.
	if got := urls(e.Entries()); len(got) != 1 || got[0] != "/a" {
		t.Fatalf("expected rollback to [/a], got %v", got)
	}
}

func TestEngine_AbortCancelsInterceptContext(t *testing.T) {
	e := NewEngine()

	cancelled := make(chan struct{})
	e.On(domain.EventNavigate, func(ev *domain.Event) error {
		if ev.Entry.URL() != "/slow" {
			return nil
		}
		return ev.Intercept(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				close(cancelled)
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		})
	})

	slow, err := e.Navigate("/slow", domain.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate rejected: %v", err)
	}

	// A second navigation aborts the in-flight one.
	fast, err := e.Navigate("/fast", domain.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate rejected: %v", err)
	}

	if _, err := wait(t, slow); !errors.Is(err, domain.ErrAborted) && !errors.Is(err, context.Canceled) {
		t.Fatalf("expected aborted transition, got %v", err)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("intercept context was never cancelled")
	}

	if _, err := wait(t, fast); err != nil {
		t.Fatalf("superseding navigation failed: %v", err)
	}
	if cur := e.CurrentEntry(); cur == nil || cur.URL() != "/fast" {
		t.Fatalf("expected current /fast, got %v", cur)
	}
}

func TestEngine_UpdateCurrentDoesNotAbort(t *testing.T) {
	e := NewEngine()
	mustNavigate(t, e, "/a")

	release := make(chan struct{})
	e.On(domain.EventNavigate, func(ev *domain.Event) error {
		if ev.NavigationType != domain.NavigatePush {
			return nil
		}
		return ev.Intercept(func(ctx context.Context) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	slow, err := e.Navigate("/b", domain.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate rejected: %v", err)
	}

	upd, err := e.UpdateCurrent(domain.UpdateOptions{State: "fresh"})
	if err != nil {
		t.Fatalf("UpdateCurrent rejected: %v", err)
	}

	close(release)

	if _, err := wait(t, slow); err != nil {
		t.Fatalf("update must not abort the in-flight navigation: %v", err)
	}
	entry, err := wait(t, upd)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if entry.State() != "fresh" {
		t.Fatalf("expected updated state, got %v", entry.State())
	}

	// The update targeted /a's slot; after the chained push of /b the
	// current entry is /b and /a's slot carries the new payload.
	got := urls(e.Entries())
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Fatalf("expected [/a /b], got %v", got)
	}
	if e.Entries()[0].State() != "fresh" {
		t.Fatalf("expected /a slot updated, got %v", e.Entries()[0].State())
	}
}

func TestEngine_RapidNavigationsLastWins(t *testing.T) {
	e := NewEngine()

	const n = 10
	results := make([]domain.Result, 0, n)
	for i := 0; i < n; i++ {
		res, err := e.Navigate(fmt.Sprintf("/p%d", i), domain.NavigateOptions{})
		if err != nil {
			t.Fatalf("Navigate %d rejected: %v", i, err)
		}
		results = append(results, res)
	}

	// Every transition settles exactly once; the last one always wins.
	for i, res := range results {
		_, err := wait(t, res)
		if i == n-1 {
			if err != nil {
				t.Fatalf("last navigation failed: %v", err)
			}
		} else if err != nil && !errors.Is(err, domain.ErrAborted) {
			t.Fatalf("navigation %d: unexpected error %v", i, err)
		}
	}

	cur := e.CurrentEntry()
	if cur == nil || cur.URL() != fmt.Sprintf("/p%d", n-1) {
		t.Fatalf("expected current /p%d, got %v", n-1, cur)
	}
	if idx := e.CurrentIndex(); idx < 0 || idx >= len(e.Entries()) {
		t.Fatalf("current index %d out of range for %d entries", idx, len(e.Entries()))
	}
}

func TestEngine_ReloadKeepsPosition(t *testing.T) {
	e := NewEngine()
	mustNavigate(t, e, "/a")
	b := mustNavigate(t, e, "/b")

	res, err := e.Reload(domain.TraverseOptions{})
	if err != nil {
		t.Fatalf("Reload rejected: %v", err)
	}
	entry, err := wait(t, res)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if entry.Key() != b.Key() {
		t.Fatal("reload clone must keep the slot key")
	}
	if entry.ID() == b.ID() {
		t.Fatal("reload clone must get a fresh identity")
	}
	if e.CurrentIndex() != 1 {
		t.Fatalf("reload must not move the pointer, got index %d", e.CurrentIndex())
	}
}

func TestEngine_TraverseToKey(t *testing.T) {
	e := NewEngine()
	a := mustNavigate(t, e, "/a")
	mustNavigate(t, e, "/b")
	mustNavigate(t, e, "/c")

	res, err := e.TraverseTo(a.Key(), domain.TraverseOptions{})
	if err != nil {
		t.Fatalf("TraverseTo rejected: %v", err)
	}
	entry, err := wait(t, res)
	if err != nil {
		t.Fatalf("TraverseTo failed: %v", err)
	}
	if entry.URL() != "/a" || e.CurrentIndex() != 0 {
		t.Fatalf("expected /a at index 0, got %s at %d", entry.URL(), e.CurrentIndex())
	}
	// History is preserved end to end.
	if len(e.Entries()) != 3 {
		t.Fatalf("expected 3 entries, got %v", urls(e.Entries()))
	}
}

func TestEngine_CurrentChangeOnlyForSameDocument(t *testing.T) {
	e := NewEngine()

	var currentChanges []string
	e.On(domain.EventCurrentChange, func(ev *domain.Event) error {
		currentChanges = append(currentChanges, ev.Entry.URL())
		return nil
	})

	mustNavigate(t, e, "/a")

	res, _ := e.Navigate("/a#frag", domain.NavigateOptions{SameDocument: true})
	if _, err := wait(t, res); err != nil {
		t.Fatalf("same-document navigation failed: %v", err)
	}

	if len(currentChanges) != 1 || currentChanges[0] != "/a#frag" {
		t.Fatalf("expected one currentchange for /a#frag, got %v", currentChanges)
	}
}

func TestEngine_MaxEntriesTrimsOldest(t *testing.T) {
	e := NewEngine(WithMaxEntries(2))

	disposed := make(chan string, 4)
	e.On(domain.EventDispose, func(ev *domain.Event) error {
		disposed <- ev.Entry.URL()
		return nil
	})

	mustNavigate(t, e, "/a")
	mustNavigate(t, e, "/b")
	mustNavigate(t, e, "/c")

	got := urls(e.Entries())
	if len(got) != 2 || got[0] != "/b" || got[1] != "/c" {
		t.Fatalf("expected [/b /c], got %v", got)
	}
	if e.CurrentIndex() != 1 {
		t.Fatalf("expected index 1, got %d", e.CurrentIndex())
	}

	select {
	case url := <-disposed:
		if url != "/a" {
			t.Fatalf("expected /a disposed, got %s", url)
		}
	case <-time.After(time.Second):
		t.Fatal("trimmed entry was never disposed")
	}
}

func TestEngine_SnapshotRestore(t *testing.T) {
	e := NewEngine()
	mustNavigate(t, e, "/a")
	mustNavigate(t, e, "/b")

	snap := e.Snapshot()
	if len(snap.Entries) != 2 || snap.CurrentIndex != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	restored := NewEngine()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := urls(restored.Entries()); len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Fatalf("expected [/a /b], got %v", got)
	}
	if restored.CurrentIndex() != 1 {
		t.Fatalf("expected index 1, got %d", restored.CurrentIndex())
	}

	// The restored engine operates normally.
	res, err := restored.Back(domain.TraverseOptions{})
	if err != nil {
		t.Fatalf("Back after restore rejected: %v", err)
	}
	if _, err := wait(t, res); err != nil {
		t.Fatalf("Back after restore failed: %v", err)
	}
}

func TestEngine_RestoreDisposesDroppedEntries(t *testing.T) {
	e := NewEngine()
	mustNavigate(t, e, "/a")
	b := mustNavigate(t, e, "/b")

	disposed := make(chan string, 2)
	e.On(domain.EventDispose, func(ev *domain.Event) error {
		disposed <- ev.Entry.ID()
		return nil
	})

	snap := e.Snapshot()
	snap.Entries = snap.Entries[:1]
	snap.CurrentIndex = 0
	if err := e.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	select {
	case id := <-disposed:
		if id != b.ID() {
			t.Fatalf("expected %s disposed, got %s", b.ID(), id)
		}
	case <-time.After(time.Second):
		t.Fatal("dropped entry was never disposed")
	}
}

func TestEngine_RestoreRejectsInvalidSnapshot(t *testing.T) {
	e := NewEngine()

	if err := e.Restore(nil); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("nil snapshot: expected ErrInvalidOperation, got %v", err)
	}

	bad := &domain.Snapshot{Entries: []domain.EntryRecord{{ID: "x", Key: "k"}}, CurrentIndex: 5}
	if err := e.Restore(bad); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("invalid index: expected ErrInvalidOperation, got %v", err)
	}
}

func TestEngine_EntryIndexTracksPosition(t *testing.T) {
	e := NewEngine()
	a := mustNavigate(t, e, "/a")
	mustNavigate(t, e, "/b")

	if a.Index() != 0 {
		t.Fatalf("expected /a at index 0, got %d", a.Index())
	}

	// Traversing back replaces /a's slot with a clone, detaching the
	// original object.
	res, _ := e.Back(domain.TraverseOptions{})
	if _, err := wait(t, res); err != nil {
		t.Fatalf("Back failed: %v", err)
	}

	if a.Index() != -1 {
		t.Fatalf("expected detached /a to report -1, got %d", a.Index())
	}
	if cur := e.CurrentEntry(); cur.Key() != a.Key() || cur.Index() != 0 {
		t.Fatalf("expected clone in slot 0 with the same key, got index %d", cur.Index())
	}
}

func TestEngine_FinishEventDeliveredToEntry(t *testing.T) {
	e := NewEngine()

	// The intercept holds the transition in its sub-operation phase so
	// the finish listener is registered before the finish event fires.
	release := make(chan struct{})
	e.On(domain.EventNavigate, func(ev *domain.Event) error {
		return ev.Intercept(func(ctx context.Context) error {
			<-release
			return nil
		})
	})

	res, err := e.Navigate("/a", domain.NavigateOptions{})
	if err != nil {
		t.Fatalf("Navigate rejected: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry, err := res.Committed.Wait(ctx)
	if err != nil {
		t.Fatalf("Committed failed: %v", err)
	}

	finished := make(chan struct{})
	entry.On(domain.EventFinish, func(ev *domain.Event) error {
		close(finished)
		return nil
	})
	close(release)

	if _, err := wait(t, res); err != nil {
		t.Fatalf("Finished failed: %v", err)
	}
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("finish event never reached the entry")
	}
}
