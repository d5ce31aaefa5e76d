package workspace

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Manager owns one workspace directory.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a manager for dir. Nothing is created until Create.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, logger: logger}
}

// Create ensures the workspace directory exists.
func (m *Manager) Create() error {
	if m.dir == "" {
		return errors.ConfigError("workspace directory not set").Build()
	}
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return errors.FileSystemError("create workspace directory").
			WithContext("path", m.dir).WithCause(err).Build()
	}
	m.logger.Debug("Using workspace", logfields.Path(m.dir))
	return nil
}

// Path returns the workspace directory.
func (m *Manager) Path() string {
	return m.dir
}

// Checkout returns the directory holding the checkout of source name.
func (m *Manager) Checkout(name string) string {
	return filepath.Join(m.dir, name)
}

// Prune removes checkouts whose names are not in keep and returns the
// removed names. Hidden entries and plain files are left alone.
func (m *Manager) Prune(keep []string) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.FileSystemError("read workspace directory").
			WithContext("path", m.dir).WithCause(err).Build()
	}

	var removed []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || slices.Contains(keep, name) {
			continue
		}
		if err := os.RemoveAll(m.Checkout(name)); err != nil {
			return removed, errors.FileSystemError("remove stale checkout").
				WithContext("path", m.Checkout(name)).WithCause(err).Build()
		}
		m.logger.Info("Removed stale checkout", logfields.Name(name), logfields.Path(m.Checkout(name)))
		removed = append(removed, name)
	}
	return removed, nil
}
