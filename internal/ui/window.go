package ui

import (
	"sync"

	"github.com/evertran/koinonia-desktop/internal/logger"
)

// MainWindow is the surface the coordinator drives in response to
// notification clicks and lifecycle transitions. The production binary backs
// it with the embedded browser shell; tests and headless runs use LogWindow.
type MainWindow interface {
	// Present brings the window to the foreground, restoring it if minimized.
	Present() error
	// Navigate points the window at a URL.
	Navigate(url string) error
	// Hide removes the window from view without ending the session.
	Hide() error
}

// LogWindow is a MainWindow that only records what it was asked to do. It
// backs headless runs and is the test double for click routing.
type LogWindow struct {
	mu         sync.Mutex
	visible    bool
	currentURL string
	logger     *logger.Logger
}

// NewLogWindow creates a log-only window
func NewLogWindow() *LogWindow {
	return &LogWindow{
		logger: logger.NewComponentLogger("Window"),
	}
}

// Present marks the window visible
func (w *LogWindow) Present() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = true
	w.logger.Info("Window presented")
	return nil
}

// Navigate records the target URL
func (w *LogWindow) Navigate(url string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentURL = url
	w.logger.Info("Window navigating to %s", url)
	return nil
}

// Hide marks the window hidden
func (w *LogWindow) Hide() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = false
	w.logger.Info("Window hidden")
	return nil
}

// Visible reports whether the window is currently shown
func (w *LogWindow) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

// CurrentURL returns the last navigated URL
func (w *LogWindow) CurrentURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentURL
}
