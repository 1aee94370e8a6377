package domain

import (
	"sync"

	"github.com/google/uuid"
)

// NavigationType tags how an entry (or the transition that produced it)
// entered the history sequence.
type NavigationType string

const (
	NavigateUnset    NavigationType = ""
	NavigatePush     NavigationType = "push"
	NavigateReplace  NavigationType = "replace"
	NavigateTraverse NavigationType = "traverse"
	NavigateReload   NavigationType = "reload"
	NavigateUpdate   NavigationType = "update"
	NavigateRollback NavigationType = "rollback"
)

// IndexFunc resolves an entry's position in its owning sequence.
// It returns -1 for detached entries.
type IndexFunc func(*Entry) int

// EntryConfig describes a new history entry. Empty ID and Key are filled
// with fresh UUIDs.
type EntryConfig struct {
	ID             string
	Key            string
	URL            string
	SameDocument   bool
	State          any
	NavigationType NavigationType

	// Index is supplied by the owning navigator so the entry can report
	// its position lazily.
	Index IndexFunc
}

// Entry is one navigable history state. It is immutable by convention:
// identity, url and state never change after construction; only the
// disposed lifecycle flag and the listener registry are mutable.
//
// Equality of logical entries is by ID. Equality of logical slots across
// a replace-in-place is by Key: an original entry and its replacement
// clone share the same Key.
type Entry struct {
	id           string
	key          string
	url          string
	sameDocument bool
	state        any
	navType      NavigationType
	index        IndexFunc

	mu        sync.Mutex
	listeners map[EventType][]Handler
	disposed  bool
}

// NewEntry constructs a history entry.
func NewEntry(cfg EntryConfig) *Entry {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Key == "" {
		cfg.Key = uuid.NewString()
	}
	return &Entry{
		id:           cfg.ID,
		key:          cfg.Key,
		url:          cfg.URL,
		sameDocument: cfg.SameDocument,
		state:        cfg.State,
		navType:      cfg.NavigationType,
		index:        cfg.Index,
	}
}

// Clone creates a new entry with a fresh ID but the same Key, url, state
// and document affinity. Traversals, reloads and in-place updates clone
// the entry they target.
func (e *Entry) Clone(navType NavigationType) *Entry {
	return NewEntry(EntryConfig{
		Key:            e.key,
		URL:            e.url,
		SameDocument:   e.sameDocument,
		State:          e.state,
		NavigationType: navType,
		Index:          e.index,
	})
}

// CloneWithState is Clone with a replacement state payload, used by
// update-in-place navigations.
func (e *Entry) CloneWithState(navType NavigationType, state any) *Entry {
	clone := e.Clone(navType)
	clone.state = state
	return clone
}

// ID returns the entry's identity, unique across all entries ever
// created by one navigator.
func (e *Entry) ID() string { return e.id }

// Key returns the logical slot identity, shared between an entry and its
// replacement clones.
func (e *Entry) Key() string { return e.key }

// URL returns the entry's target locator. The engine treats it as an
// opaque string.
func (e *Entry) URL() string { return e.url }

// SameDocument reports whether the entry shares a document with its
// neighbours; currentchange notifications fire only for such entries.
func (e *Entry) SameDocument() bool { return e.sameDocument }

// State returns the opaque caller payload exactly as it was given.
// The engine never mutates it.
func (e *Entry) State() any { return e.state }

// NavigationType returns how this entry entered the sequence.
func (e *Entry) NavigationType() NavigationType { return e.navType }

// Index returns the entry's position in the owning sequence, or -1 when
// detached. It is computed lazily on every call.
func (e *Entry) Index() int {
	if e.index == nil {
		return -1
	}
	return e.index(e)
}

// Disposed reports whether the entry has left reachability.
func (e *Entry) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// MarkDisposed flips the disposed flag. It reports whether this call
// performed the flip, so the disposal notification fires exactly once.
func (e *Entry) MarkDisposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return false
	}
	e.disposed = true
	return true
}

// On registers an entry-scoped listener (navigateto, navigatefrom,
// finish, dispose). It returns a removal function.
func (e *Entry) On(t EventType, h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[EventType][]Handler)
	}
	e.listeners[t] = append(e.listeners[t], h)
	idx := len(e.listeners[t]) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		hs := e.listeners[t]
		if idx < len(hs) && hs[idx] != nil {
			hs[idx] = nil
		}
	}
}

// Dispatch delivers the event to the entry's listeners in registration
// order. All listeners run; the first error is returned.
func (e *Entry) Dispatch(ev *Event) error {
	e.mu.Lock()
	hs := append([]Handler(nil), e.listeners[ev.Type]...)
	e.mu.Unlock()

	var first error
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

// Record converts the entry into its serializable form.
func (e *Entry) Record() EntryRecord {
	return EntryRecord{
		ID:             e.id,
		Key:            e.key,
		URL:            e.url,
		SameDocument:   e.sameDocument,
		State:          e.state,
		NavigationType: e.navType,
	}
}
