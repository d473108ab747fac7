package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/gentle-alert/internal/config"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

// Repository defines persistence operations for the rule set.
type Repository interface {
	// Load returns every stored rule. ErrNotFound means nothing was saved yet.
	Load(ctx context.Context) ([]*alert.Rule, error)
	// Save replaces the stored rule set.
	Save(ctx context.Context, rules []*alert.Rule) error
}

// documentVersion is written into every rules file.
const documentVersion = 1

var (
	// ErrNotFound is returned when no rule set has been saved yet.
	ErrNotFound = errors.New("rules not found")
	// ErrUnsupportedVersion is returned for a rules file written by a newer release.
	ErrUnsupportedVersion = errors.New("unsupported rules file version")
)

// document is the on-disk layout of the rules file.
type document struct {
	// Version of the layout.
	Version int `yaml:"version"`
	// Rules in display order.
	Rules []*alert.Rule `yaml:"rules"`
}

// FileRepository persists rules to a YAML file.
type FileRepository struct {
	// fs is the filesystem holding the file.
	fs afero.Fs
	// path is the location of the rules file.
	path string
	// mu serializes access to the file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes YAML at path on fs.
// A nil fs means the OS filesystem.
func NewFileRepository(fs afero.Fs, path string) *FileRepository {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &FileRepository{
		fs:   fs,
		path: filepath.Clean(path),
	}
}

// Path returns the rules file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the rules from the file.
func (r *FileRepository) Load(_ context.Context) ([]*alert.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var doc document
	if err = yaml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode rules file: %w", err)
	}

	if doc.Version > documentVersion {
		return nil, fmt.Errorf("version %d: %w", doc.Version, ErrUnsupportedVersion)
	}

	return doc.Rules, nil
}

// Save writes the rules to a temporary file and renames it over the old one,
// so a crash never leaves a truncated file behind.
func (r *FileRepository) Save(_ context.Context, rules []*alert.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rules == nil {
		rules = []*alert.Rule{}
	}

	data, err := yaml.Marshal(document{Version: documentVersion, Rules: rules})
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	if err = r.fs.MkdirAll(filepath.Dir(r.path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create rules directory: %w", err)
	}

	tmp := r.path + ".tmp"

	if err = afero.WriteFile(r.fs, tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}

	if err = r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace rules file: %w", err)
	}

	return nil
}
