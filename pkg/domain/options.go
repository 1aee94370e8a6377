package domain

import "github.com/aretw0/traverse/pkg/async"

// NavigateOptions configures a push or replace navigation.
type NavigateOptions struct {
	// Replace swaps the current entry in place instead of pushing.
	Replace bool
	// State is the opaque payload attached to the new entry.
	State any
	// Info is a transient payload delivered with the navigate event; it
	// is not stored on the entry.
	Info any
	// SameDocument marks the new entry as sharing a document with the
	// current one; URL resolution is the host's responsibility.
	SameDocument bool
}

// TraverseOptions configures back, forward, key and reload navigations.
type TraverseOptions struct {
	Info any
}

// UpdateOptions configures an update-in-place of the current entry.
type UpdateOptions struct {
	// State replaces the current entry's payload.
	State any
}

// Result is the synchronous return of every accepted navigation request.
type Result struct {
	// Committed resolves once the entry-list mutation and same-document
	// event delivery complete.
	Committed *async.Future[*Entry]
	// Finished resolves once the full protocol, including caller
	// sub-operations, completes. Failures are reported here and through
	// the navigateerror event, never thrown later.
	Finished *async.Future[*Entry]
}
