// Package config loads, validates and saves the YAML settings shared by the
// daemon and the command-line client: listen addresses, polling and call
// timeouts, rule storage, default overlay appearance and tray delay presets.
package config
