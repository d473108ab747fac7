// Package events fans session notifications out to any number of
// subscribers: the gRPC watch stream, the HTTP event stream and the
// daemon's own persistence syncer.
package events
