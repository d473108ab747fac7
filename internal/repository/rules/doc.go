// Package rules implements persistence for alert rules.
//
// FileRepository keeps the rule set in a YAML document on an afero filesystem.
// SQLiteRepository keeps it in an SQLite database whose schema is managed by
// golang-migrate. Both satisfy Repository, which the daemon depends on.
package rules
