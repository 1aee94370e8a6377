// Package domain holds the passive data model of the navigation engine:
// history entries, the per-navigation Transition state machine, event
// structures, snapshots and the error taxonomy.
//
// The types here carry no scheduling logic. The engine in internal/runtime
// drives them; hosts observe them through events and futures.
package domain
