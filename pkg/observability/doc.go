/*
Package observability provides Prometheus instrumentation for a navigator.

It observes the navigation lifecycle through the same listener surface
hosts use, recording transition counts, durations and history depth.
*/
package observability
