package traverse

import (
	"log/slog"

	"github.com/aretw0/traverse/internal/logging"
	"github.com/aretw0/traverse/internal/runtime"
	"github.com/aretw0/traverse/pkg/domain"
	"github.com/aretw0/traverse/pkg/ports"
)

// Aliases so hosts can use the facade without importing pkg/domain.
type (
	Entry           = domain.Entry
	Event           = domain.Event
	EventType       = domain.EventType
	Handler         = domain.Handler
	NavigationType  = domain.NavigationType
	NavigateOptions = domain.NavigateOptions
	TraverseOptions = domain.TraverseOptions
	UpdateOptions   = domain.UpdateOptions
	Result          = domain.Result
	Snapshot        = domain.Snapshot
	Transition      = domain.Transition
)

// Event types and navigation kinds, re-exported from pkg/domain.
const (
	EventNavigate        = domain.EventNavigate
	EventNavigateSuccess = domain.EventNavigateSuccess
	EventNavigateError   = domain.EventNavigateError
	EventCurrentChange   = domain.EventCurrentChange
	EventDispose         = domain.EventDispose
	EventNavigateTo      = domain.EventNavigateTo
	EventNavigateFrom    = domain.EventNavigateFrom
	EventFinish          = domain.EventFinish

	NavigatePush     = domain.NavigatePush
	NavigateReplace  = domain.NavigateReplace
	NavigateTraverse = domain.NavigateTraverse
	NavigateReload   = domain.NavigateReload
	NavigateUpdate   = domain.NavigateUpdate
	NavigateRollback = domain.NavigateRollback
)

// Sentinel errors, re-exported from pkg/domain.
var (
	ErrInvalidOperation = domain.ErrInvalidOperation
	ErrAborted          = domain.ErrAborted
	ErrRollbackFailed   = domain.ErrRollbackFailed
)

// Navigator is the high-level entry point for the traverse library.
// It wraps the internal runtime and provides a simplified API for hosts.
type Navigator struct {
	engine     *runtime.Engine
	logger     *slog.Logger
	clock      ports.Clock
	maxEntries int
}

// Option defines a functional option for configuring the Navigator.
type Option func(*Navigator)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		n.logger = logger
	}
}

// WithClock injects a monotonic timing source for transition
// measurements. Without one the engine records nothing.
func WithClock(clock ports.Clock) Option {
	return func(n *Navigator) {
		n.clock = clock
	}
}

// WithMaxEntries bounds the history length; pushing past the cap drops
// and disposes the oldest entry. Zero means unbounded.
func WithMaxEntries(max int) Option {
	return func(n *Navigator) {
		n.maxEntries = max
	}
}

// New initializes a Navigator with an empty history.
func New(opts ...Option) *Navigator {
	n := &Navigator{
		logger: logging.NewNop(),
		clock:  ports.NopClock{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logging.NewNop()
	}
	n.engine = runtime.NewEngine(
		runtime.WithLogger(n.logger),
		runtime.WithClock(n.clock),
		runtime.WithMaxEntries(n.maxEntries),
	)
	return n
}

// Navigate creates a fresh entry with push (or replace) semantics and
// enqueues it behind any pending transitions.
func (n *Navigator) Navigate(url string, opts NavigateOptions) (Result, error) {
	return n.engine.Navigate(url, opts)
}

// Back traverses to the previous entry. It fails synchronously when no
// previous entry exists.
func (n *Navigator) Back(opts TraverseOptions) (Result, error) {
	return n.engine.Back(opts)
}

// Forward traverses to the next entry. It fails synchronously when no
// next entry exists.
func (n *Navigator) Forward(opts TraverseOptions) (Result, error) {
	return n.engine.Forward(opts)
}

// TraverseTo traverses to the entry with the given key.
func (n *Navigator) TraverseTo(key string, opts TraverseOptions) (Result, error) {
	return n.engine.TraverseTo(key, opts)
}

// Reload re-enters the current entry.
func (n *Navigator) Reload(opts TraverseOptions) (Result, error) {
	return n.engine.Reload(opts)
}

// UpdateCurrent replaces the current entry's state payload in place.
// Unlike the other operations it never aborts an in-flight transition.
func (n *Navigator) UpdateCurrent(opts UpdateOptions) (Result, error) {
	return n.engine.UpdateCurrent(opts)
}

// On registers a navigator-scoped listener (navigate, navigatesuccess,
// navigateerror, currentchange, dispose). It returns a removal function.
func (n *Navigator) On(t EventType, h Handler) func() {
	return n.engine.On(t, h)
}

// Entries returns a copy of the current history sequence.
func (n *Navigator) Entries() []*Entry {
	return n.engine.Entries()
}

// CurrentEntry returns the current entry, or nil while the history is
// empty.
func (n *Navigator) CurrentEntry() *Entry {
	return n.engine.CurrentEntry()
}

// CurrentIndex returns the position of the current entry, or -1.
func (n *Navigator) CurrentIndex() int {
	return n.engine.CurrentIndex()
}

// ActiveTransition returns the most recently accepted unsettled
// transition, or nil.
func (n *Navigator) ActiveTransition() *Transition {
	return n.engine.ActiveTransition()
}

// Snapshot captures the entry sequence for persistence.
func (n *Navigator) Snapshot() *Snapshot {
	return n.engine.Snapshot()
}

// Restore replaces the live sequence with a previously captured
// snapshot. Entries that drop out of reachability are disposed.
func (n *Navigator) Restore(snap *Snapshot) error {
	return n.engine.Restore(snap)
}
