// Package session implements the per-connection pipeline of spec.md
// §4.1: header-read → body-read → credential capture → dispatch →
// response-encode → response-write, repeated until the peer closes or
// a framing error makes the connection unrecoverable. Reads suspend
// the session's own goroutine only; sessions never share state with
// one another.
package session
