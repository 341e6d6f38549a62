package notify

import (
	"sync"

	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/ui"
)

// Renderer displays a notification. onClick fires when the user activates it;
// implementations may call it at most once, from any goroutine.
type Renderer interface {
	Render(env Envelope, onClick func()) error
}

// Config carries the router's tunables.
type Config struct {
	ServerURL string
	BodyLimit int
	Enabled   bool
}

// Router normalizes incoming push payloads, shows them through a renderer
// chain, and publishes the click target on the UI bus. Display failure is
// never fatal: the preferred renderer falls back to the basic one, and total
// failure is logged and swallowed so a broken notification daemon can't take
// the channel down with it.
type Router struct {
	cfg       Config
	preferred Renderer
	fallback  Renderer
	bus       ui.Notifier
	logger    *logger.Logger
}

// NewRouter creates a notification router. Either renderer may be nil; with
// both nil the router still resolves targets, it just can't display.
func NewRouter(cfg Config, preferred, fallback Renderer, bus ui.Notifier) *Router {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 50
	}
	return &Router{
		cfg:       cfg,
		preferred: preferred,
		fallback:  fallback,
		bus:       bus,
		logger:    logger.NewComponentLogger("NotificationRouter"),
	}
}

// Route handles one raw push payload. Returns true when a notification was
// displayed.
func (r *Router) Route(payload []byte) bool {
	if !r.cfg.Enabled {
		r.logger.Debug("Notifications disabled, dropping payload")
		return false
	}

	env := Normalize(payload, r.cfg.ServerURL, r.cfg.BodyLimit)
	r.logger.Info("Routing notification %q (target %s)", env.Title, env.Kind)

	// Renderers may misbehave and signal a click more than once; the
	// navigation must still be forwarded exactly once.
	var once sync.Once
	onClick := func() {
		once.Do(func() { r.handleClick(env) })
	}

	if r.preferred != nil {
		err := r.preferred.Render(env, onClick)
		if err == nil {
			return true
		}
		r.logger.Warn("Preferred renderer failed, falling back: %v", err)
	}

	if r.fallback != nil {
		err := r.fallback.Render(env, onClick)
		if err == nil {
			return true
		}
		r.logger.Error("Fallback renderer failed: %v", err)
	}

	r.logger.Warn("Notification %q could not be displayed", env.Title)
	return false
}

// handleClick publishes the navigation target for a clicked notification
func (r *Router) handleClick(env Envelope) {
	if env.TargetURL == "" {
		r.logger.Debug("Clicked notification has no target, presenting window only")
	}
	if r.bus == nil {
		return
	}
	if err := r.bus.Notify(ui.ChanLifecycle, ui.NotificationClicked{TargetURL: env.TargetURL}); err != nil {
		r.logger.Warn("Failed to publish notification click: %v", err)
	}
}
