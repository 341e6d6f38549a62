// Package orchestrator wires the agent's components together and coordinates
// their lifecycle: startup, window events, the UI event bus, and the ordered
// shutdown sequence.
//
// Quit with an active session is a two-step handoff: the server is told the
// member signed off, then the realtime connection closes, in that order and
// exactly once, no matter how many quit triggers fire (menu, signal, window).
// The whole sequence is bounded so a dead server cannot wedge shutdown.
package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/evertran/koinonia-desktop/internal/config"
	"github.com/evertran/koinonia-desktop/internal/debug"
	"github.com/evertran/koinonia-desktop/internal/desktop/tray"
	"github.com/evertran/koinonia-desktop/internal/desktop/windowstate"
	"github.com/evertran/koinonia-desktop/internal/errors"
	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/notify"
	"github.com/evertran/koinonia-desktop/internal/realtime"
	"github.com/evertran/koinonia-desktop/internal/remote"
	"github.com/evertran/koinonia-desktop/internal/session"
	"github.com/evertran/koinonia-desktop/internal/store"
	"github.com/evertran/koinonia-desktop/internal/token"
	"github.com/evertran/koinonia-desktop/internal/ui"
)

// shutdownTimeout bounds the whole quit sequence.
const shutdownTimeout = 15 * time.Second

// SessionControl is the session surface the coordinator drives.
type SessionControl interface {
	CurrentIdentity() string
	OnLoginSuccess(memberID, authToken string) error
	OnLogout() session.LogoutResult
	RestoreSession() bool
	Heartbeat()
}

// RealtimeControl is the realtime surface the coordinator drives.
type RealtimeControl interface {
	CheckReconnect()
	Close() error
}

// Orchestrator coordinates all agent components
type Orchestrator struct {
	cfg      *config.Config
	store    *store.SecureStore
	session  SessionControl
	realtime RealtimeControl
	router   *notify.Router
	bus      *ui.Bus
	window   ui.MainWindow
	winState *windowstate.Manager
	debugAPI *debug.Server
	logger   *logger.Logger

	quitOnce sync.Once
	done     chan struct{}
}

// New creates and wires all components. window and sysTray come from the
// platform entry point; sysTray may be nil for headless runs.
func New(cfg *config.Config, window ui.MainWindow, sysTray tray.SystemTray) (*Orchestrator, error) {
	log := logger.NewComponentLogger("Orchestrator")

	secureStore, err := store.Open(cfg.Storage.Path, store.KeyMaterial{
		DataDir:    cfg.App.DataDir,
		AppVersion: cfg.App.Version,
		AppName:    cfg.App.Name,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open secure store")
	}

	tokens := token.NewManager(secureStore)
	api := remote.NewClient(cfg.Server.URL, cfg.HTTPTimeout())
	bus := ui.NewBus()

	var fallback notify.Renderer
	if sysTray != nil {
		fallback = tray.NewRenderer(sysTray)
	}
	router := notify.NewRouter(notify.Config{
		ServerURL: cfg.Server.URL,
		BodyLimit: cfg.Notifications.BodyLimit,
		Enabled:   cfg.Notifications.Enabled,
	}, nil, fallback, bus)

	rt := realtime.NewManager(realtime.Config{
		ServerURL:        cfg.Server.URL,
		ReconnectDelay:   cfg.ReconnectDelay(),
		HandshakeTimeout: cfg.HandshakeTimeout(),
	}, realtime.NewWebsocketDialer(cfg.HandshakeTimeout()), func(data json.RawMessage) {
		router.Route(data)
	})

	sess := session.NewState(secureStore, tokens, api, rt, bus, cfg.HTTPTimeout())

	o := &Orchestrator{
		cfg:      cfg,
		store:    secureStore,
		session:  sess,
		realtime: rt,
		router:   router,
		bus:      bus,
		window:   window,
		winState: windowstate.NewManager(cfg.Window.StateFile, cfg.Window.DefaultWidth, cfg.Window.DefaultHeight),
		logger:   log,
		done:     make(chan struct{}),
	}

	if cfg.DebugAPI.Enabled {
		o.debugAPI = debug.NewServer(cfg.DebugAPI.Host, cfg.DebugAPI.Port, rt, sess)
	}

	return o, nil
}

// Start begins bus dispatch, restores any prior session, and brings up the
// debug API when enabled
func (o *Orchestrator) Start() error {
	o.logger.Info("Starting %s %s", o.cfg.App.Name, o.cfg.App.Version)

	if err := o.bus.Listen(ui.ChanLifecycle, o.handleEvent); err != nil {
		return errors.Wrap(err, "failed to attach lifecycle listener")
	}

	if o.debugAPI != nil {
		o.debugAPI.Start()
	}

	if o.session.RestoreSession() {
		o.logger.Info("Prior session restored")
	} else {
		o.logger.Info("No prior session, waiting for login")
	}

	return nil
}

// handleEvent dispatches lifecycle bus payloads
func (o *Orchestrator) handleEvent(p ui.Payload) {
	switch ev := p.(type) {
	case ui.LoginSuccess:
		if err := o.session.OnLoginSuccess(ev.MemberID, ev.AuthToken); err != nil {
			o.logger.Error("Login handling failed: %v", err)
		}
	case ui.LogoutRequested:
		o.session.OnLogout()
	case ui.NotificationClicked:
		o.handleNotificationClick(ev)
	case ui.SessionRestored:
		o.logger.Debug("Session restored event for %s", logger.MaskIdentity(ev.MemberID))
	case ui.TokenUpdated:
		o.logger.Debug("Device token registered: %s", logger.MaskToken(ev.Token))
	default:
		o.logger.Debug("Unhandled lifecycle event %s", p.Type())
	}
}

// handleNotificationClick restores the window and forwards navigation
func (o *Orchestrator) handleNotificationClick(ev ui.NotificationClicked) {
	if o.window == nil {
		return
	}
	if err := o.window.Present(); err != nil {
		o.logger.Warn("Failed to present window: %v", err)
	}
	if ev.TargetURL != "" {
		if err := o.window.Navigate(ev.TargetURL); err != nil {
			o.logger.Warn("Failed to navigate to %s: %v", ev.TargetURL, err)
		}
	}
}

// OnWindowRestore handles the window coming back from minimized. The
// connection may have died while the machine slept, so this re-checks it, and
// a restore with no active session attempts recovery from the mirror.
func (o *Orchestrator) OnWindowRestore() {
	o.logger.Debug("Window restored")
	if o.session.CurrentIdentity() == "" {
		o.session.RestoreSession()
		return
	}
	o.realtime.CheckReconnect()
	go o.session.Heartbeat()
}

// OnWindowFocus handles the window gaining focus
func (o *Orchestrator) OnWindowFocus() {
	o.logger.Debug("Window focused")
	o.realtime.CheckReconnect()
	go o.session.Heartbeat()
}

// OnWindowMinimize handles the window being minimized
func (o *Orchestrator) OnWindowMinimize() {
	o.logger.Debug("Window minimized")
}

// OnWindowBlur handles the window losing focus
func (o *Orchestrator) OnWindowBlur() {
	o.logger.Debug("Window blurred")
}

// OnWindowClose persists geometry when the window closes
func (o *Orchestrator) OnWindowClose(g windowstate.Geometry) {
	if err := o.winState.Save(g); err != nil {
		o.logger.Warn("Failed to save window state: %v", err)
	}
}

// WindowGeometry returns the persisted or default window geometry
func (o *Orchestrator) WindowGeometry() windowstate.Geometry {
	return o.winState.Load()
}

// RequestQuit starts the shutdown sequence. Safe to call from any goroutine
// and any number of times; the sequence runs once.
func (o *Orchestrator) RequestQuit() {
	o.quitOnce.Do(func() {
		go func() {
			defer close(o.done)
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			o.shutdown(ctx)
		}()
	})
}

// shutdown runs the ordered teardown
func (o *Orchestrator) shutdown(ctx context.Context) {
	o.logger.Info("Shutting down...")

	// Server logout first, then connection teardown. OnLogout performs both
	// in that order and is bounded by the HTTP timeout.
	if o.session.CurrentIdentity() != "" {
		finished := make(chan struct{})
		go func() {
			o.session.OnLogout()
			close(finished)
		}()
		select {
		case <-finished:
		case <-ctx.Done():
			o.logger.Warn("Logout did not finish before shutdown deadline")
		}
	}

	if err := o.realtime.Close(); err != nil {
		o.logger.Warn("Realtime close failed: %v", err)
	}

	if o.debugAPI != nil {
		if err := o.debugAPI.Stop(ctx); err != nil {
			o.logger.Warn("Debug API stop failed: %v", err)
		}
	}

	errors.SafeClose(o.bus, "event bus")
	errors.SafeClose(o.store, "secure store")

	o.logger.Info("Shutdown complete")
}

// Done is closed when shutdown has finished
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Run blocks until a quit request or termination signal completes shutdown
func (o *Orchestrator) Run() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		o.logger.Info("Received signal %v", sig)
		o.RequestQuit()
	case <-o.done:
		return
	}

	<-o.done
}
