// Package rest serves the HTTP API used by overlay renderers: rule and
// session snapshots with computed progress, a server-sent events stream of
// session transitions, tray commands and an iCalendar feed of the rules.
package rest
