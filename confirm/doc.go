// Package confirm implements the tool-confirmation handshake. A workflow turn
// that wants to run a tool parks on Await; the transport resolves the wait
// with Resolve once the user confirmed or declined. Each session holds at
// most one pending confirmation at a time.
//
// The wait is a one-shot channel with a deadline, not a poll loop. The slot
// is released on every exit path: confirm, decline, timeout, and caller
// cancellation.
package confirm
