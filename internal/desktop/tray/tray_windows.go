//go:build windows

package tray

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/getlantern/systray"
)

// WindowsSystemTray implements SystemTray for Windows
type WindowsSystemTray struct {
	config    *Config
	menuItems []*MenuItem
	mu        sync.RWMutex
	quitChan  chan struct{}
	ready     chan struct{}
}

func newPlatformSystemTray(config *Config) SystemTray {
	return &WindowsSystemTray{
		config:   config,
		quitChan: make(chan struct{}),
		ready:    make(chan struct{}),
	}
}

// Initialize sets up the system tray
func (w *WindowsSystemTray) Initialize() error {
	if w.config == nil {
		return fmt.Errorf("config is required")
	}
	return nil
}

// ShowNotification displays a balloon notification via PowerShell. The
// balloon cannot report clicks, so this is the display-only fallback path.
func (w *WindowsSystemTray) ShowNotification(title, message string, severity NotificationSeverity) error {
	icon := "Info"
	switch severity {
	case NotificationWarning:
		icon = "Warning"
	case NotificationError:
		icon = "Error"
	}

	script := fmt.Sprintf(`
Add-Type -AssemblyName System.Windows.Forms
$n = New-Object System.Windows.Forms.NotifyIcon
$n.Icon = [System.Drawing.SystemIcons]::Information
$n.Visible = $true
$n.ShowBalloonTip(5000, '%s', '%s', [System.Windows.Forms.ToolTipIcon]::%s)`,
		escapePowershell(title), escapePowershell(message), icon)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("powershell notification failed: %w", err)
	}
	return nil
}

// escapePowershell neutralizes single quotes in user-controlled text
func escapePowershell(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// SetTooltip updates the tray icon tooltip
func (w *WindowsSystemTray) SetTooltip(text string) {
	select {
	case <-w.ready:
		systray.SetTooltip(text)
	default:
	}
}

// SetMenu updates the system tray menu
func (w *WindowsSystemTray) SetMenu(items []*MenuItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.menuItems = items
}

// Run starts the system tray event loop (blocking)
func (w *WindowsSystemTray) Run() {
	systray.Run(w.onReady, w.onExit)
}

// Quit stops the system tray
func (w *WindowsSystemTray) Quit() {
	systray.Quit()
}

func (w *WindowsSystemTray) onReady() {
	systray.SetTitle(w.config.AppName)
	systray.SetTooltip(w.config.TooltipText)

	w.mu.RLock()
	items := w.menuItems
	w.mu.RUnlock()

	for _, item := range items {
		w.addMenuItem(item)
	}

	close(w.ready)
}

func (w *WindowsSystemTray) onExit() {
	close(w.quitChan)
}

func (w *WindowsSystemTray) addMenuItem(item *MenuItem) {
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
				case <-w.quitChan:
					return
				}
			}
		}(item.OnClick)
	}
}
