// Package alert contains the core domain model: alert rules with their
// schedule and appearance, and the overlay session state machine a rule
// drives once it fires.
//
// Types here are plain values without I/O. Everything time-dependent takes
// the current instant as an argument so callers can inject a clock.
package alert
