// Package async provides the two scheduling primitives the navigation
// engine is built on: a settle-once Deferred (with a read-only Future
// view) and a cooperative abort Signal.
//
// Both are safe for concurrent use. Settlement and abort are idempotent:
// multiple completion paths may race to settle the same outcome, and only
// the first one wins.
package async
