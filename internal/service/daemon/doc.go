// Package daemon runs alertd: it loads the settings and the stored rules,
// starts the scheduler loop, serves the gRPC control API and the HTTP
// renderer API, and writes rule changes back to the configured repository
// until the context is canceled or a client asks it to exit.
package daemon
