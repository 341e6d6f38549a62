// Package windowstate persists main window geometry between launches. The
// file is plain JSON: geometry is not sensitive and a hand-edited or corrupt
// file must never block startup, so any load problem falls back to defaults.
package windowstate

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/evertran/koinonia-desktop/internal/errors"
	"github.com/evertran/koinonia-desktop/internal/logger"
)

// Geometry is the persisted window placement.
type Geometry struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// Manager loads and saves window geometry
type Manager struct {
	path     string
	defaults Geometry
	logger   *logger.Logger
}

// NewManager creates a window state manager. defaults apply whenever the
// state file is missing or unreadable.
func NewManager(path string, defaultWidth, defaultHeight int) *Manager {
	return &Manager{
		path: path,
		defaults: Geometry{
			Width:  defaultWidth,
			Height: defaultHeight,
		},
		logger: logger.NewComponentLogger("WindowState"),
	}
}

// Load returns the persisted geometry, falling back to defaults on any error
func (m *Manager) Load() Geometry {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("Window state unreadable, using defaults: %v", err)
		}
		return m.defaults
	}

	var g Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		m.logger.Warn("Window state corrupt, using defaults: %v", err)
		return m.defaults
	}
	if g.Width <= 0 || g.Height <= 0 {
		return m.defaults
	}
	return g
}

// Save persists the geometry. Debouncing rapid resize events is the
// caller's concern.
func (m *Manager) Save(g Geometry) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return errors.Wrap(err, "failed to create window state directory")
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode window state")
	}

	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write window state")
	}

	m.logger.Debug("Saved window geometry %dx%d at (%d,%d)", g.Width, g.Height, g.X, g.Y)
	return nil
}
