// Package scheduler runs the alert loop: it polls the rule store on a tick,
// fires due rules into overlay sessions, advances every session with the
// clock and applies tray and editor commands from a queue.
//
// The loop is the only writer of session state. Other goroutines talk to it
// through the exported methods, which enqueue a typed command and wait for
// the reply.
package scheduler
