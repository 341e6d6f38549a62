// Package token manages the agent's persistent device token. The token
// identifies this installation to the push relay and must survive restarts,
// so it lives in the secure store and is only regenerated when missing or
// malformed.
package token

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evertran/koinonia-desktop/internal/logger"
	"github.com/evertran/koinonia-desktop/internal/store"
)

// Token format: electron-fcm-<unix millis>-<10 char suffix>.
// The legacy format kept a dash inside the suffix because it was cut from a
// hyphenated UUID; those tokens stay valid so existing installs don't churn.
var (
	tokenPattern       = regexp.MustCompile(`^electron-fcm-\d+-[a-z0-9]{10}$`)
	legacyTokenPattern = regexp.MustCompile(`^electron-fcm-\d+-[0-9a-f]{8}-[0-9a-f]$`)
)

// Record is the persisted shape of the device token.
type Record struct {
	Token     string `json:"token"`
	CreatedAt int64  `json:"createdAt"`
}

// Manager owns device token generation and persistence
type Manager struct {
	store  *store.SecureStore
	logger *logger.Logger
}

// NewManager creates a token manager backed by the given store
func NewManager(s *store.SecureStore) *Manager {
	return &Manager{
		store:  s,
		logger: logger.NewComponentLogger("TokenManager"),
	}
}

// IsValid reports whether a token matches the current or legacy format
func IsValid(token string) bool {
	return tokenPattern.MatchString(token) || legacyTokenPattern.MatchString(token)
}

// Generate produces a fresh device token
func Generate() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("electron-fcm-%d-%s", time.Now().UnixMilli(), suffix)
}

// EnsureToken returns the stored device token, generating and persisting a
// new one when no valid token exists. Repeated calls without an intervening
// reset return the same token.
func (m *Manager) EnsureToken() (string, error) {
	if stored := m.load(); stored != "" {
		m.logger.Debug("Using stored device token %s", logger.MaskToken(stored))
		return stored, nil
	}

	token := Generate()
	record := Record{
		Token:     token,
		CreatedAt: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode token record: %w", err)
	}

	if ok := m.store.Put(store.KeyDeviceToken, data); !ok {
		// Persistence failed; the token is still usable for this run but the
		// next launch will mint a different one.
		m.logger.Warn("Device token not persisted, will regenerate on next launch")
	}

	m.logger.Info("Generated new device token %s", logger.MaskToken(token))
	return token, nil
}

// Reset discards the stored token so the next EnsureToken mints a new one
func (m *Manager) Reset() error {
	return m.store.Delete(store.KeyDeviceToken)
}

// load returns the stored token if present and well-formed, else ""
func (m *Manager) load() string {
	data := m.store.Get(store.KeyDeviceToken)
	if data == nil {
		return ""
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		m.logger.Warn("Stored token record unreadable, regenerating: %v", err)
		return ""
	}

	if !IsValid(record.Token) {
		if record.Token != "" {
			m.logger.Warn("Stored token %s is malformed, regenerating", logger.MaskToken(record.Token))
		}
		return ""
	}

	return record.Token
}
