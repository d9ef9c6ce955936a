// Package wait turns "check a condition, sleep, repeat until a deadline" into
// a blocking primitive with well defined error semantics, and fans collections
// of independent conditions out over a bounded set of workers.
//
// A condition that returns false is polled again after a fixed interval. A
// condition that returns an error aborts the wait immediately; conditions that
// expect an error as their success signal (for example NotFound while waiting
// for a deletion) must handle it themselves and return true.
package wait
