package domain

import "errors"

// ErrInvalidOperation marks precondition violations: pushing a duplicate
// entry, traversing with no matching target, or operating on an
// already-settled transition. It never triggers a rollback.
var ErrInvalidOperation = errors.New("invalid operation")

// ErrAborted classifies cooperative cancellation of an in-flight
// transition.
var ErrAborted = errors.New("navigation aborted")

// ErrRollbackFailed is escalated when restoring the pre-transition
// snapshot fails. Callers must treat it as unrecoverable corruption of
// the navigation state.
var ErrRollbackFailed = errors.New("rollback failed")

// ErrSnapshotNotFound is returned when a snapshot ID cannot be found in
// the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")
