package domain

import (
	"context"
	"fmt"

	"github.com/aretw0/traverse/pkg/async"
)

// EventType defines the category of a navigation notification.
type EventType string

// Navigator-scoped events.
const (
	EventNavigate        EventType = "navigate"
	EventNavigateSuccess EventType = "navigatesuccess"
	EventNavigateError   EventType = "navigateerror"
	EventCurrentChange   EventType = "currentchange"
	EventDispose         EventType = "dispose"
)

// Entry-scoped events. Dispose is shared with the navigator scope.
const (
	EventNavigateTo   EventType = "navigateto"
	EventNavigateFrom EventType = "navigatefrom"
	EventFinish       EventType = "finish"
)

// Handler consumes one event. A non-nil error rejects the transition that
// produced the event; for terminal notifications (finish, dispose,
// navigateerror) the error is logged and otherwise ignored.
type Handler func(*Event) error

// PendingRegistrar collects caller sub-operations a listener wants the
// transition to await before it is declared finished. The Transition type
// implements it.
type PendingRegistrar interface {
	Register(*async.Future[struct{}]) error
}

// Event is one structured notification in the transition lifecycle.
type Event struct {
	Type           EventType
	Entry          *Entry // destination entry, or the disposed entry
	From           *Entry
	NavigationType NavigationType
	Info           any   // caller payload from the originating operation
	Err            error // set for navigateerror

	// Signal is the transition's abort signal; listeners may watch it to
	// stop long work cooperatively.
	Signal *async.Signal

	// Registrar accepts "wait for me too" registrations. Nil for events
	// that are not interceptable.
	Registrar PendingRegistrar
}

// WaitFor registers an already-running sub-operation with the
// transition. The transition does not finish until the future settles; a
// rejected future rejects the transition.
func (e *Event) WaitFor(f *async.Future[struct{}]) error {
	if e.Registrar == nil {
		return fmt.Errorf("%w: event %q does not accept sub-operations", ErrInvalidOperation, e.Type)
	}
	return e.Registrar.Register(f)
}

// Intercept runs fn on its own goroutine and makes the transition wait
// for it. The context is cancelled when the transition aborts.
// Registration fails immediately once the transition is cancelled or
// settled.
func (e *Event) Intercept(fn func(context.Context) error) error {
	if e.Registrar == nil {
		return fmt.Errorf("%w: event %q does not accept sub-operations", ErrInvalidOperation, e.Type)
	}

	d := async.NewDeferred[struct{}]()
	ctx, cancel := context.WithCancel(context.Background())
	if e.Signal != nil {
		e.Signal.OnAbort(func(error) { cancel() })
	}

	if err := e.Registrar.Register(d.Future()); err != nil {
		cancel()
		return err
	}

	go func() {
		defer cancel()
		if err := fn(ctx); err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(struct{}{})
	}()
	return nil
}
