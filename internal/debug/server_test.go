package debug

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/evertran/koinonia-desktop/internal/realtime"
)

type fakeRealtime struct {
	mu         sync.Mutex
	emits      []string
	reconnects int
	emitErr    error
}

func (f *fakeRealtime) Status() realtime.Status {
	return realtime.Status{State: "connected", MemberID: "me***", Generation: 3}
}

func (f *fakeRealtime) Emit(name string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, name)
	return nil
}

func (f *fakeRealtime) CheckReconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
}

type fakeSession struct{ id string }

func (f *fakeSession) CurrentIdentity() string { return f.id }

func newTestServer(t *testing.T) (*httptest.Server, *fakeRealtime) {
	t.Helper()
	rt := &fakeRealtime{}
	s := NewServer("127.0.0.1", 0, rt, &fakeSession{id: "member-12345"})
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, rt
}

func TestStatusEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Realtime.State != "connected" {
		t.Errorf("realtime state = %s", body.Realtime.State)
	}
	if body.Session == "member-12345" {
		t.Error("status leaks raw identity")
	}
}

func TestEmitEndpoint(t *testing.T) {
	ts, rt := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/socket/emit", "application/json",
		strings.NewReader(`{"event":"ping","data":{"x":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.emits) != 1 || rt.emits[0] != "ping" {
		t.Errorf("emits = %v", rt.emits)
	}
}

func TestEmitRejectsBadBody(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/socket/emit", "application/json",
		strings.NewReader(`{"data":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReconnectEndpoint(t *testing.T) {
	ts, rt := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/socket/reconnect", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.reconnects != 1 {
		t.Errorf("reconnects = %d", rt.reconnects)
	}
}

func TestMethodRestrictions(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/status = %d, want 405", resp.StatusCode)
	}
}
