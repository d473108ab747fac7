package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ProcessLister lists the running processes.
type ProcessLister func() ([]ps.Process, error)

// ErrAlreadyRunning is returned when another daemon process is found.
var ErrAlreadyRunning = errors.New("another alertd instance is already running")

// ensureSingleInstance fails when a process other than this one runs the
// same executable.
func ensureSingleInstance(list ProcessLister, executable string) error {
	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		return fmt.Errorf("pid %d: %w", process.Pid(), ErrAlreadyRunning)
	}

	return nil
}

// currentExecutable returns the file name of the running binary.
func currentExecutable() string {
	path, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}

	return filepath.Base(path)
}
