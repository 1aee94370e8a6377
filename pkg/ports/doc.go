// Package ports defines the interfaces the navigation engine depends on
// but does not implement: snapshot persistence, distributed locking and
// the timing source. Adapters live under pkg/adapters.
package ports
