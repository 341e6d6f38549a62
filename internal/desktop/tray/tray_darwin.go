//go:build darwin

package tray

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/getlantern/systray"
)

// DarwinSystemTray implements SystemTray for macOS
type DarwinSystemTray struct {
	config    *Config
	menuItems []*MenuItem
	mu        sync.RWMutex
	quitChan  chan struct{}
	ready     chan struct{}
}

func newPlatformSystemTray(config *Config) SystemTray {
	return &DarwinSystemTray{
		config:   config,
		quitChan: make(chan struct{}),
		ready:    make(chan struct{}),
	}
}

// Initialize sets up the system tray
func (d *DarwinSystemTray) Initialize() error {
	if d.config == nil {
		return fmt.Errorf("config is required")
	}
	return nil
}

// ShowNotification displays a notification through Notification Center.
// osascript cannot report clicks, so this is the display-only fallback path.
func (d *DarwinSystemTray) ShowNotification(title, message string, severity NotificationSeverity) error {
	script := fmt.Sprintf("display notification %q with title %q", escapeAppleScript(message), escapeAppleScript(title))
	cmd := exec.Command("osascript", "-e", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("osascript failed: %w", err)
	}
	return nil
}

// escapeAppleScript neutralizes quotes in user-controlled text
func escapeAppleScript(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// SetTooltip updates the tray icon tooltip
func (d *DarwinSystemTray) SetTooltip(text string) {
	select {
	case <-d.ready:
		systray.SetTooltip(text)
	default:
	}
}

// SetMenu updates the system tray menu
func (d *DarwinSystemTray) SetMenu(items []*MenuItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.menuItems = items
}

// Run starts the system tray event loop (blocking)
func (d *DarwinSystemTray) Run() {
	systray.Run(d.onReady, d.onExit)
}

// Quit stops the system tray
func (d *DarwinSystemTray) Quit() {
	systray.Quit()
}

func (d *DarwinSystemTray) onReady() {
	systray.SetTitle(d.config.AppName)
	systray.SetTooltip(d.config.TooltipText)

	d.mu.RLock()
	items := d.menuItems
	d.mu.RUnlock()

	for _, item := range items {
		d.addMenuItem(item)
	}

	close(d.ready)
}

func (d *DarwinSystemTray) onExit() {
	close(d.quitChan)
}

func (d *DarwinSystemTray) addMenuItem(item *MenuItem) {
	if item == nil {
		return
	}

	menuItem := systray.AddMenuItem(item.Label, "")
	if !item.Enabled {
		menuItem.Disable()
	}

	if item.OnClick != nil {
		go func(onClick func()) {
			for {
				select {
				case <-menuItem.ClickedCh:
					onClick()
				case <-d.quitChan:
					return
				}
			}
		}(item.OnClick)
	}
}
