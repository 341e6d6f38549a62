// Package session tracks who is signed in and coordinates the side effects of
// login and logout: device token registration, the encrypted session mirror,
// and the realtime connection. Server calls are best-effort; local state is
// always cleaned up even when the server is unreachable.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/remote"
	"github.com/evertran/koinonia-desktop/internal/store"
	"github.com/evertran/koinonia-desktop/internal/token"
	"github.com/evertran/koinonia-desktop/internal/ui"
)

// Mirror is the persisted shape of the active session. Field names match the
// server's member records.
type Mirror struct {
	MemberID    string `json:"memberId"`
	DeviceToken string `json:"fcmToken"`
	LastLoginAt int64  `json:"lastLogin"`
}

// LogoutResult reports how a logout went. Local cleanup always happens;
// ServerNotified records whether the server heard about it.
type LogoutResult struct {
	ServerNotified bool
}

// Connector is the realtime surface the session drives.
type Connector interface {
	Connect(memberID, authToken, deviceToken string) error
	Disconnect()
}

// RemoteAPI is the server surface the session drives.
type RemoteAPI interface {
	Heartbeat(ctx context.Context, memberID string) error
	UpdateToken(ctx context.Context, memberID, deviceToken string, info remote.DeviceInfo) error
	Logout(ctx context.Context, memberID string) error
}

// State owns the signed-in identity and its side effects
type State struct {
	mu        sync.Mutex
	memberID  string
	authToken string

	store       *store.SecureStore
	tokens      *token.Manager
	remote      RemoteAPI
	conn        Connector
	bus         ui.Notifier
	httpTimeout time.Duration
	logger      *logger.Logger
}

// NewState creates the session state. bus may be nil in tests.
func NewState(s *store.SecureStore, tokens *token.Manager, api RemoteAPI, conn Connector, bus ui.Notifier, httpTimeout time.Duration) *State {
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}
	return &State{
		store:       s,
		tokens:      tokens,
		remote:      api,
		conn:        conn,
		bus:         bus,
		httpTimeout: httpTimeout,
		logger:      logger.NewComponentLogger("Session"),
	}
}

// CurrentIdentity returns the signed-in member id, or "" when signed out
func (s *State) CurrentIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberID
}

// OnLoginSuccess adopts a freshly authenticated session: it persists the
// session mirror, opens the realtime connection, and registers the device
// token with the server in the background. Registration failure is logged
// and dropped; the next login retries it.
func (s *State) OnLoginSuccess(memberID, authToken string) error {
	deviceToken, err := s.tokens.EnsureToken()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.memberID = memberID
	s.authToken = authToken
	s.mu.Unlock()

	s.logger.Info("Login for member %s", logger.MaskIdentity(memberID))

	s.persistMirror(memberID, deviceToken)

	if err := s.conn.Connect(memberID, authToken, deviceToken); err != nil {
		s.logger.Warn("Realtime connect failed: %v", err)
	}

	go s.registerToken(memberID, deviceToken)
	return nil
}

// registerToken pushes the device token to the server, fire-and-forget
func (s *State) registerToken(memberID, deviceToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.httpTimeout)
	defer cancel()

	if err := s.remote.UpdateToken(ctx, memberID, deviceToken, remote.LocalDeviceInfo()); err != nil {
		s.logger.Warn("Device token registration failed: %v", err)
		return
	}
	if s.bus != nil {
		s.bus.Notify(ui.ChanLifecycle, ui.TokenUpdated{Token: deviceToken})
	}
}

// persistMirror writes the encrypted session mirror
func (s *State) persistMirror(memberID, deviceToken string) {
	mirror := Mirror{
		MemberID:    memberID,
		DeviceToken: deviceToken,
		LastLoginAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(mirror)
	if err != nil {
		s.logger.Error("Failed to encode session mirror: %v", err)
		return
	}
	if !s.store.Put(store.KeyMemberInfo, data) {
		s.logger.Warn("Session mirror not persisted")
	}
}

// OnLogout ends the session. The server is told first, bounded by the HTTP
// timeout; local cleanup (connection teardown, mirror removal, identity
// clearing) happens regardless of whether that call succeeded.
func (s *State) OnLogout() LogoutResult {
	s.mu.Lock()
	memberID := s.memberID
	s.mu.Unlock()

	if memberID == "" {
		s.logger.Debug("Logout with no active session")
		return LogoutResult{}
	}

	result := LogoutResult{}
	ctx, cancel := context.WithTimeout(context.Background(), s.httpTimeout)
	if err := s.remote.Logout(ctx, memberID); err != nil {
		s.logger.Warn("Server logout failed, cleaning up locally anyway: %v", err)
	} else {
		result.ServerNotified = true
	}
	cancel()

	s.conn.Disconnect()

	if err := s.store.Delete(store.KeyMemberInfo); err != nil {
		s.logger.Warn("Failed to remove session mirror: %v", err)
	}

	s.mu.Lock()
	s.memberID = ""
	s.authToken = ""
	s.mu.Unlock()

	s.logger.Info("Logout complete for member %s (server notified: %v)",
		logger.MaskIdentity(memberID), result.ServerNotified)
	return result
}

// RestoreSession recovers the prior session at startup from the encrypted
// mirror. Returns true when an identity was adopted. The realtime connection
// is re-established without an auth token; the server re-authenticates it on
// the next full login.
func (s *State) RestoreSession() bool {
	data := s.store.Get(store.KeyMemberInfo)
	if data == nil {
		return false
	}

	var mirror Mirror
	if err := json.Unmarshal(data, &mirror); err != nil || mirror.MemberID == "" {
		// Covers the empty-object result a corrupt store yields.
		return false
	}

	deviceToken, err := s.tokens.EnsureToken()
	if err != nil {
		s.logger.Warn("Token unavailable during restore: %v", err)
		deviceToken = mirror.DeviceToken
	}

	s.mu.Lock()
	s.memberID = mirror.MemberID
	s.mu.Unlock()

	s.logger.Info("Restored session for member %s", logger.MaskIdentity(mirror.MemberID))

	if err := s.conn.Connect(mirror.MemberID, "", deviceToken); err != nil {
		s.logger.Warn("Realtime connect failed during restore: %v", err)
	}
	if s.bus != nil {
		s.bus.Notify(ui.ChanLifecycle, ui.SessionRestored{MemberID: mirror.MemberID})
	}

	go s.Heartbeat()
	return true
}

// Heartbeat reports presence for the current identity, if any
func (s *State) Heartbeat() {
	s.mu.Lock()
	memberID := s.memberID
	s.mu.Unlock()

	if memberID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.httpTimeout)
	defer cancel()

	if err := s.remote.Heartbeat(ctx, memberID); err != nil {
		s.logger.Debug("Heartbeat failed: %v", err)
	}
}
