/*
Package session orchestrates persistence of navigation snapshots.

It serializes concurrent access to a snapshot ID across goroutines and,
when a distributed locker is configured, across replicas, so hosts can
save and restore navigation state without losing writes.
*/
package session
