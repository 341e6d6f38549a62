// Package realtime maintains the persistent event channel to the Koinonia
// server. It owns exactly one connection at a time: every (re)connect closes
// the previous socket before opening a new one, and a generation counter
// invalidates goroutines left over from superseded connections.
//
// Connection State Machine:
//
//	Disconnected → Connecting → Connected
//	                   ↑            ↓  (read error / drop)
//	                   └── Reconnecting
//	any state ──Close()──→ Closed (terminal)
//
// Reconnection retries forever at a fixed short delay; the desktop agent is
// long-lived and the server being briefly unreachable is normal. Logout goes
// through Disconnect, which clears the session identity so later wake or
// focus events cannot resurrect a connection for a signed-out user.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/evertran/koinonia-desktop/internal/errors"
	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/token"
)

// Wire event names
const (
	EventConnected     = "connected"
	EventRegisterToken = "register-fcm-token"
	EventRequestToken  = "request-fcm-token"
	EventNotification  = "fcm-notification"
)

// ConnState is the connection lifecycle state
type ConnState int

// Connection states
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Event is one frame on the wire: a name plus a free-form JSON payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Socket is one established connection.
type Socket interface {
	ReadEvent() (Event, error)
	WriteEvent(Event) error
	Close() error
}

// Dialer establishes sockets. The production implementation speaks websocket;
// tests substitute in-memory sockets.
type Dialer interface {
	Dial(ctx context.Context, serverURL, authToken string) (Socket, error)
}

// Config carries the manager's tunables.
type Config struct {
	ServerURL        string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// Status is a point-in-time snapshot for diagnostics.
type Status struct {
	State       string `json:"state"`
	MemberID    string `json:"memberId"`
	DeviceToken string `json:"deviceToken"`
	Generation  uint64 `json:"generation"`
	LastError   string `json:"lastError,omitempty"`
	ConnectedAt string `json:"connectedAt,omitempty"`
}

// Manager owns the realtime connection lifecycle
type Manager struct {
	mu          sync.Mutex
	state       ConnState
	generation  uint64
	memberID    string
	authToken   string
	deviceToken string
	socket      Socket
	lastErr     error
	connectedAt time.Time

	cfg            Config
	dialer         Dialer
	onNotification func(data json.RawMessage)
	logger         *logger.Logger
}

// NewManager creates a realtime connection manager. onNotification is invoked
// from the read loop for every incoming notification frame; it must not block
// for long.
func NewManager(cfg Config, dialer Dialer, onNotification func(data json.RawMessage)) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	return &Manager{
		state:          StateDisconnected,
		cfg:            cfg,
		dialer:         dialer,
		onNotification: onNotification,
		logger:         logger.NewComponentLogger("Realtime"),
	}
}

// Connect establishes the channel for a member. Any existing connection is
// closed first so at most one socket is ever live. Safe to call again with
// new credentials; the old connection's goroutines become stale and exit.
func (m *Manager) Connect(memberID, authToken, deviceToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return errors.NewComponentError("Realtime", "connect", fmt.Errorf("manager is closed"))
	}
	if memberID == "" {
		return errors.NewComponentError("Realtime", "connect", fmt.Errorf("member id is required"))
	}

	m.memberID = memberID
	m.authToken = authToken
	m.deviceToken = deviceToken

	m.startLocked("connect")
	return nil
}

// CheckReconnect re-establishes the channel if it has dropped. It is a no-op
// while a connection is live or already being (re)established, after Close,
// and when no member is signed in, so callers may invoke it freely on window
// focus, restore, and wake events.
func (m *Manager) CheckReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateConnected, StateConnecting, StateReconnecting, StateClosed:
		return
	}
	if m.memberID == "" {
		return
	}

	m.logger.Info("Connection down with active session, reconnecting")
	m.startLocked("check-reconnect")
}

// startLocked supersedes any current connection and spawns a fresh connect
// loop. Caller holds m.mu.
func (m *Manager) startLocked(reason string) {
	m.generation++
	gen := m.generation

	if m.socket != nil {
		m.socket.Close()
		m.socket = nil
	}
	m.state = StateConnecting

	m.logger.Info("Starting connection (generation %d, reason %s) for member %s",
		gen, reason, logger.MaskIdentity(m.memberID))

	go m.run(gen, m.memberID, m.authToken, m.deviceToken)
}

// run dials, reads, and redials until superseded or shut down. One run
// goroutine exists per generation; stale generations exit at the next
// lock acquisition.
func (m *Manager) run(gen uint64, memberID, authToken, deviceToken string) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
		sock, err := m.dialer.Dial(ctx, m.cfg.ServerURL, authToken)
		cancel()

		if err != nil {
			if !m.noteFailure(gen, err) {
				return
			}
			time.Sleep(m.cfg.ReconnectDelay)
			continue
		}

		if !m.adoptSocket(gen, sock) {
			sock.Close()
			return
		}

		m.register(sock, memberID, deviceToken)

		readErr := m.readLoop(gen, sock, memberID, deviceToken)
		if !m.noteFailure(gen, readErr) {
			return
		}
		time.Sleep(m.cfg.ReconnectDelay)
	}
}

// adoptSocket installs a freshly dialed socket. Returns false when this
// generation has been superseded.
func (m *Manager) adoptSocket(gen uint64, sock Socket) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.state == StateClosed {
		return false
	}

	m.socket = sock
	m.state = StateConnected
	m.lastErr = nil
	m.connectedAt = time.Now()
	m.logger.Info("Connected (generation %d)", gen)
	return true
}

// noteFailure records a dial or read failure and moves to Reconnecting.
// Returns false when this generation should stop retrying.
func (m *Manager) noteFailure(gen uint64, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.state == StateClosed {
		return false
	}

	m.lastErr = err
	if m.socket != nil {
		m.socket.Close()
		m.socket = nil
	}
	m.state = StateReconnecting
	m.logger.Warn("Connection lost (generation %d), retrying in %v: %v", gen, m.cfg.ReconnectDelay, err)
	return true
}

// register announces this device on a new connection. Tokens that don't
// match a recognized format are never sent; the server would reject them and
// the token manager will mint a replacement on the next launch.
func (m *Manager) register(sock Socket, memberID, deviceToken string) {
	if !token.IsValid(deviceToken) {
		m.logger.Warn("Holding malformed device token %s, skipping registration", logger.MaskToken(deviceToken))
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"token":    deviceToken,
		"memberId": memberID,
	})
	if err := sock.WriteEvent(Event{Name: EventRegisterToken, Data: payload}); err != nil {
		m.logger.Warn("Failed to register device token: %v", err)
		return
	}
	m.logger.Info("Registered device token %s", logger.MaskToken(deviceToken))
}

// readLoop consumes frames until the socket fails or the generation is
// superseded. The returned error is the read failure.
func (m *Manager) readLoop(gen uint64, sock Socket, memberID, deviceToken string) error {
	for {
		ev, err := sock.ReadEvent()
		if err != nil {
			return err
		}

		m.mu.Lock()
		stale := gen != m.generation || m.state == StateClosed
		m.mu.Unlock()
		if stale {
			return fmt.Errorf("superseded")
		}

		switch ev.Name {
		case EventConnected:
			m.logger.Debug("Server acknowledged connection: %s", ev.Data)
		case EventRequestToken:
			m.logger.Debug("Server requested device token")
			m.register(sock, memberID, deviceToken)
		case EventNotification:
			if m.onNotification != nil {
				m.onNotification(ev.Data)
			}
		default:
			m.logger.Debug("Ignoring event %s", ev.Name)
		}
	}
}

// Emit sends an event on the live connection
func (m *Manager) Emit(name string, data interface{}) error {
	m.mu.Lock()
	sock := m.socket
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || sock == nil {
		return errors.NewComponentError("Realtime", "emit", fmt.Errorf("not connected (state %s)", state))
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to encode %s payload", name)
	}
	return sock.WriteEvent(Event{Name: name, Data: payload})
}

// Disconnect tears down the connection and forgets the session identity.
// Subsequent CheckReconnect calls are no-ops until the next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return
	}

	m.generation++
	if m.socket != nil {
		m.socket.Close()
		m.socket = nil
	}
	m.memberID = ""
	m.authToken = ""
	m.deviceToken = ""
	m.state = StateDisconnected
	m.logger.Info("Disconnected, session identity cleared")
}

// Close shuts the manager down permanently
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return nil
	}

	m.generation++
	if m.socket != nil {
		m.socket.Close()
		m.socket = nil
	}
	m.memberID = ""
	m.authToken = ""
	m.deviceToken = ""
	m.state = StateClosed
	m.logger.Info("Realtime manager closed")
	return nil
}

// State returns the current connection state
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a diagnostics snapshot with identifying values masked
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:       m.state.String(),
		MemberID:    logger.MaskIdentity(m.memberID),
		DeviceToken: logger.MaskToken(m.deviceToken),
		Generation:  m.generation,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	if !m.connectedAt.IsZero() && m.state == StateConnected {
		st.ConnectedAt = m.connectedAt.UTC().Format(time.RFC3339)
	}
	return st
}
