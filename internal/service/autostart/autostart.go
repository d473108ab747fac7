// Package autostart registers alertd to start with the user session.
package autostart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"

	"github.com/oshokin/gentle-alert/internal/logger"
)

const (
	// appName is the entry name in the session autostart directory.
	appName = "gentle-alert"
	// appDisplayName is shown by desktop session managers.
	appDisplayName = "Gentle Alert"
)

// Entry is a session autostart entry. *autostart.App implements it.
type Entry interface {
	IsEnabled() bool
	Enable() error
	Disable() error
}

// Options describes the command registered for autostart.
type Options struct {
	// Executable is the daemon binary. Defaults to the running executable.
	Executable string
	// ConfigPath is passed to the daemon with --config when set.
	ConfigPath string
}

// NewApp builds the autostart entry launching the daemon.
func NewApp(opts Options) (*autostart.App, error) {
	executable := opts.Executable
	if executable == "" {
		path, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}

		executable = path
	}

	// Resolve symlinks so the entry survives package manager relinks.
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}

	exec := []string{executable}

	if opts.ConfigPath != "" {
		configPath, err := filepath.Abs(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}

		exec = append(exec, "--config", configPath)
	}

	return &autostart.App{
		Name:        appName,
		DisplayName: appDisplayName,
		Exec:        exec,
	}, nil
}

// Enable registers entry and reports whether anything changed.
func Enable(ctx context.Context, entry Entry) (bool, error) {
	if entry.IsEnabled() {
		logger.Info(ctx, "Autostart is already enabled")

		return false, nil
	}

	if err := entry.Enable(); err != nil {
		return false, fmt.Errorf("enable autostart: %w", err)
	}

	logger.Info(ctx, "Autostart enabled")

	return true, nil
}

// Disable removes entry and reports whether anything changed.
func Disable(ctx context.Context, entry Entry) (bool, error) {
	if !entry.IsEnabled() {
		logger.Info(ctx, "Autostart is already disabled")

		return false, nil
	}

	if err := entry.Disable(); err != nil {
		return false, fmt.Errorf("disable autostart: %w", err)
	}

	logger.Info(ctx, "Autostart disabled")

	return true, nil
}
