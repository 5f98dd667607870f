// Package reload delivers data from a ResponseCache to consumers that ask
// for it to be refreshed.
//
// A Coalescer holds at most one pending task. Submitting a task replaces any
// task that has not started yet, so bursts of reload requests collapse into
// a single reload of the latest request. A Provider is anything that exposes
// a stream of ready values and accepts reload requests; URLProvider is the
// implementation backed by a single URL.
package reload
