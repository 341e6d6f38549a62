//go:build linux

package tray

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/getlantern/systray"
)

// LinuxSystemTray implements SystemTray for Linux
type LinuxSystemTray struct {
	config    *Config
	menuItems []*MenuItem
	mu        sync.RWMutex
	quitChan  chan struct{}
	ready     chan struct{}
}

func newPlatformSystemTray(config *Config) SystemTray {
	return &LinuxSystemTray{
		config:   config,
		quitChan: make(chan struct{}),
		ready:    make(chan struct{}),
	}
}

// Initialize sets up the system tray
func (l *LinuxSystemTray) Initialize() error {
	if l.config == nil {
		return fmt.Errorf("config is required")
	}
	return nil
}

// ShowNotification displays a desktop notification via the freedesktop
// notification daemon. notify-send cannot report clicks, so this is the
// display-only fallback path.
func (l *LinuxSystemTray) ShowNotification(title, message string, severity NotificationSeverity) error {
	urgency := "normal"
	if severity == NotificationError {
		urgency = "critical"
	}

	cmd := exec.Command("notify-send", "--app-name", l.config.AppName, "--urgency", urgency, title, message)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notify-send failed: %w", err)
	}
	return nil
}

// SetTooltip updates the tray icon tooltip
func (l *LinuxSystemTray) SetTooltip(text string) {
	select {
	case <-l.ready:
		systray.SetTooltip(text)
	default:
		// Tray not running yet; the tooltip from config applies at onReady.
	}
}

// SetMenu updates the system tray menu
func (l *LinuxSystemTray) SetMenu(items []*MenuItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.menuItems = items
}

// Run starts the system tray event loop (blocking)
func (l *LinuxSystemTray) Run() {
	systray.Run(l.onReady, l.onExit)
}

// Quit stops the system tray
func (l *LinuxSystemTray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready
func (l *LinuxSystemTray) onReady() {
	systray.SetTitle(l.config.AppName)
	systray.SetTooltip(l.config.TooltipText)

	l.mu.RLock()
	items := l.menuItems
	l.mu.RUnlock()

	for _, item := range items {
		l.addMenuItem(item)
	}

	close(l.ready)
}

// onExit is called when the system tray is exiting
func (l *LinuxSystemTray) onExit() {
	close(l.quitChan)
}

// addMenuItem adds a menu item to the system tray
func (l *LinuxSystemTray) addMenuItem(item *MenuItem) {
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
				case <-l.quitChan:
					return
				}
			}
		}(item.OnClick)
	}
}
