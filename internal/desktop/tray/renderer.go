package tray

import (
	"github.com/evertran/koinonia-desktop/internal/notify"
)

// Renderer adapts the tray's basic notification primitive to the router's
// renderer chain. The primitive cannot observe clicks, so onClick is never
// fired from this path; clickable notifications come from richer renderers
// placed ahead of this one.
type Renderer struct {
	tray SystemTray
}

// NewRenderer wraps a system tray as a notification renderer
func NewRenderer(t SystemTray) *Renderer {
	return &Renderer{tray: t}
}

// Render displays the notification through the tray primitive
func (r *Renderer) Render(env notify.Envelope, onClick func()) error {
	return r.tray.ShowNotification(env.Title, env.Body, NotificationInfo)
}
