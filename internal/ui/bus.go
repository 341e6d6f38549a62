// Package ui carries events between the desktop surface (window, tray,
// notifications) and the session machinery. Components never call each other
// directly for user-driven transitions; they publish on the Bus and whoever
// cares subscribes. This keeps login, logout and notification-click flow
// testable without a real window.
package ui

import (
	"fmt"
	"sync"

	"github.com/evertran/koinonia-desktop/internal/logger"
)

// Payload is an opaque bus message. Type returns a stable name used for
// logging and for dispatch in listeners that handle multiple payloads.
type Payload interface {
	Type() string
}

// Bus channel names
const (
	ChanLifecycle = "lifecycle"
)

// LoginSuccess is published when the user completes authentication.
type LoginSuccess struct {
	MemberID  string
	AuthToken string
}

func (LoginSuccess) Type() string { return "login_success" }

// LogoutRequested is published when the user asks to sign out.
type LogoutRequested struct{}

func (LogoutRequested) Type() string { return "logout_requested" }

// SessionRestored is published when a prior session is recovered at startup.
type SessionRestored struct {
	MemberID string
}

func (SessionRestored) Type() string { return "session_restored" }

// TokenUpdated is published when the device token is minted or re-registered.
type TokenUpdated struct {
	Token string
}

func (TokenUpdated) Type() string { return "token_updated" }

// NotificationClicked is published when the user activates a desktop
// notification. TargetURL is where the window should navigate.
type NotificationClicked struct {
	TargetURL string
}

func (NotificationClicked) Type() string { return "notification_clicked" }

// Notifier publishes payloads to a named channel.
type Notifier interface {
	Notify(channel string, p Payload) error
}

// Listener registers a callback for a named channel.
type Listener interface {
	Listen(channel string, fn func(p Payload)) error
}

// Bus is an in-process publish/subscribe hub. Each channel gets a buffered
// queue drained by a single goroutine, so listeners see payloads in publish
// order and a slow listener backpressures publishers on that channel only.
//
// Payload channels are never closed. Publishers run on detached goroutines
// (token registration, notification clicks) and may race Close; shutdown is
// signaled through the done channel instead, so a late Notify gets an error
// rather than a send on a closed channel.
type Bus struct {
	mu        sync.Mutex
	chans     map[string]chan Payload
	listening map[string]bool
	wg        sync.WaitGroup
	done      chan struct{}
	closed    bool
	logger    *logger.Logger
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{
		chans:     make(map[string]chan Payload),
		listening: make(map[string]bool),
		done:      make(chan struct{}),
		logger:    logger.NewComponentLogger("Bus"),
	}
}

func (b *Bus) getChan(channel string) chan Payload {
	ch, ok := b.chans[channel]
	if !ok {
		ch = make(chan Payload, 16)
		b.chans[channel] = ch
	}
	return ch
}

// Notify publishes p on the named channel. Returns an error after Close.
func (b *Bus) Notify(channel string, p Payload) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus closed, dropping %s on %s", p.Type(), channel)
	}
	ch := b.getChan(channel)
	b.mu.Unlock()

	b.logger.Debug("Publishing %s on %s", p.Type(), channel)
	select {
	case ch <- p:
		return nil
	case <-b.done:
		return fmt.Errorf("bus closed, dropping %s on %s", p.Type(), channel)
	}
}

// Listen registers fn as the sole consumer of the named channel. fn runs on
// its own goroutine, in publish order, until Close. A channel supports one
// listener; registering a second is a programming error.
func (b *Bus) Listen(channel string, fn func(p Payload)) error {
	b.mu.Lock()
	if b.listening[channel] {
		b.mu.Unlock()
		return fmt.Errorf("channel %s already has a listener", channel)
	}
	b.listening[channel] = true
	ch := b.getChan(channel)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case p := <-ch:
				fn(p)
			case <-b.done:
				return
			}
		}
	}()
	return nil
}

// Close stops delivery and waits for in-flight listener callbacks. Payloads
// still queued are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
