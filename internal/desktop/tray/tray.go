// Package tray owns the system tray icon and the basic native notification
// primitive. The primitive can always display something, but it cannot
// observe clicks on every platform; richer renderers layer on top of it.
package tray

// NotificationSeverity represents the severity level of a notification
type NotificationSeverity string

const (
	NotificationInfo    NotificationSeverity = "info"
	NotificationWarning NotificationSeverity = "warning"
	NotificationError   NotificationSeverity = "error"
)

// MenuItem represents a menu item in the system tray
type MenuItem struct {
	Label   string
	Enabled bool
	OnClick func()
}

// SystemTray manages the system tray icon and menu
type SystemTray interface {
	// Initialize sets up the system tray
	Initialize() error

	// ShowNotification displays a desktop notification
	ShowNotification(title, message string, severity NotificationSeverity) error

	// SetTooltip updates the tray icon tooltip
	SetTooltip(text string)

	// SetMenu updates the system tray menu
	SetMenu(items []*MenuItem)

	// Run starts the system tray event loop (blocking)
	Run()

	// Quit stops the system tray and cleans up resources
	Quit()
}

// Config contains configuration for the system tray
type Config struct {
	AppName     string
	TooltipText string
}
