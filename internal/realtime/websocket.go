package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evertran/koinonia-desktop/internal/errors"
)

// realtimePath is where the server upgrades event connections.
const realtimePath = "/realtime"

// WebsocketDialer dials the server's realtime endpoint and wraps the
// connection as a Socket carrying JSON text frames.
type WebsocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer creates the production dialer
func NewWebsocketDialer(handshakeTimeout time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// Dial connects and waits for the server's opening "connected" frame. The
// auth token travels in the upgrade request headers; a connection that never
// sends the opening frame before ctx expires is treated as failed.
func (d *WebsocketDialer) Dial(ctx context.Context, serverURL, authToken string) (Socket, error) {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid server URL")
	}

	header := http.Header{}
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}

	conn, _, err := d.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, errors.Wrap(err, "websocket dial %s", wsURL)
	}

	sock := &websocketSocket{conn: conn}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	opening, err := sock.ReadEvent()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "waiting for server hello")
	}
	if opening.Name != EventConnected {
		conn.Close()
		return nil, fmt.Errorf("unexpected opening frame %q", opening.Name)
	}
	conn.SetReadDeadline(time.Time{})

	return sock, nil
}

// websocketURL converts the configured http(s) base URL to the ws(s)
// realtime endpoint.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
		// Already a websocket URL.
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + realtimePath
	return u.String(), nil
}

// websocketSocket adapts a gorilla connection to the Socket interface.
// Gorilla permits one concurrent reader and one concurrent writer; the
// manager's read loop is the only reader, and writes take wmu.
type websocketSocket struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// ReadEvent blocks for the next JSON text frame
func (s *websocketSocket) ReadEvent() (Event, error) {
	var ev Event
	if err := s.conn.ReadJSON(&ev); err != nil {
		return Event{}, err
	}
	if ev.Name == "" {
		return Event{}, fmt.Errorf("frame missing event name")
	}
	return ev, nil
}

// WriteEvent sends an event as a JSON text frame
func (s *websocketSocket) WriteEvent(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection
func (s *websocketSocket) Close() error {
	s.wmu.Lock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.wmu.Unlock()
	return s.conn.Close()
}
