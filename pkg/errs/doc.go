// Package errs implements the closed error-code taxonomy surfaced to
// clients over the wire (spec.md §6, §7). Every handler either returns a
// payload or one of these codes; nothing else crosses the session
// boundary.
package errs
