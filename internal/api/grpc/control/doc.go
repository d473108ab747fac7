// Package control exposes the daemon over gRPC to the tray and editor
// front-ends.
//
// Messages are plain Go structs carried by a JSON codec registered under the
// "json" content subtype, and the service descriptor is written by hand, so no
// generated code is involved. Server adapts a Service to the transport and
// maps domain errors to status codes; Client wraps a connection with per-call
// timeouts.
package control
