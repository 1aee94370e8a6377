/*
Package traverse is a navigation history engine: it maintains an ordered,
mutable sequence of history entries and coordinates transitions between
them under strict sequencing, cancellation and rollback guarantees.

The engine serializes concurrent navigation requests into a single active
transition, runs a multi-phase commit protocol (pre-navigation events,
guarded entry-list mutation, post-navigation events, caller
sub-operations), supports cooperative cancellation via abort signals, and
rolls back to the prior consistent state when a transition fails
mid-flight.

# Concept

A host calls a navigation operation (Navigate, Back, Forward, TraverseTo,
Reload, UpdateCurrent) and immediately receives a pair of futures:
Committed resolves once the entry list is mutated, Finished once the full
protocol, including caller-registered sub-operations, completes. Failures
are reported only through the futures and the navigateerror event, never
thrown later.

The engine is a library surface, not a service: URL resolution, timing
and persistence are external collaborators behind the interfaces in
pkg/ports.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/traverse"
	)

	func main() {
		nav := traverse.New()

		nav.On(traverse.EventNavigate, func(ev *traverse.Event) error {
			// Listeners may register asynchronous work the transition
			// must await before finishing.
			return ev.Intercept(func(ctx context.Context) error {
				return loadDocument(ctx, ev.Entry.URL())
			})
		})

		res, err := nav.Navigate("/a", traverse.NavigateOptions{})
		if err != nil {
			log.Fatal(err)
		}
		entry, err := res.Finished.Wait(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		log.Println("now at", entry.URL())
	}
*/
package traverse
