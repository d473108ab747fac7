// Package store holds the in-memory set of alert rules, the single source of
// truth shared by the editor API and the scheduler loop.
package store
