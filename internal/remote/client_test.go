package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordedRequest struct {
	path string
	body map[string]interface{}
}

func newTestServer(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		requests = append(requests, recordedRequest{path: r.URL.Path, body: body})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestHeartbeat(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK)
	c := NewClient(srv.URL, 2*time.Second)

	if err := c.Heartbeat(context.Background(), "member-42"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	req := (*requests)[0]
	if req.path != "/api/members/heartbeat" {
		t.Errorf("path = %s", req.path)
	}
	if req.body["memberId"] != "member-42" || req.body["platform"] != "electron" {
		t.Errorf("unexpected body: %v", req.body)
	}
}

func TestUpdateToken(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK)
	c := NewClient(srv.URL, 2*time.Second)

	info := DeviceInfo{Platform: "electron", OSType: "linux", DeviceName: "desk"}
	err := c.UpdateToken(context.Background(), "member-42", "electron-fcm-1700000000000-a1b2c3d4e5", info)
	if err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}

	req := (*requests)[0]
	if req.path != "/api/members/update-token" {
		t.Errorf("path = %s", req.path)
	}
	if req.body["token"] != "electron-fcm-1700000000000-a1b2c3d4e5" {
		t.Errorf("token missing from body: %v", req.body)
	}
	di, ok := req.body["deviceInfo"].(map[string]interface{})
	if !ok {
		t.Fatalf("deviceInfo missing: %v", req.body)
	}
	if di["platform"] != "electron" || di["osType"] != "linux" || di["deviceName"] != "desk" {
		t.Errorf("unexpected deviceInfo: %v", di)
	}
}

func TestLogout(t *testing.T) {
	srv, requests := newTestServer(t, http.StatusOK)
	c := NewClient(srv.URL, 2*time.Second)

	if err := c.Logout(context.Background(), "member-42"); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	req := (*requests)[0]
	if req.path != "/api/logout" {
		t.Errorf("path = %s", req.path)
	}
	if req.body["memberId"] != "member-42" || req.body["platform"] != "electron" {
		t.Errorf("unexpected body: %v", req.body)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError)
	c := NewClient(srv.URL, 2*time.Second)

	if err := c.Heartbeat(context.Background(), "member-42"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestUnreachableServerSurfaces(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 500*time.Millisecond)

	if err := c.Heartbeat(context.Background(), "member-42"); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestLocalDeviceInfo(t *testing.T) {
	info := LocalDeviceInfo()
	if info.Platform != "electron" {
		t.Errorf("platform = %s", info.Platform)
	}
	if info.OSType == "" || info.DeviceName == "" {
		t.Errorf("incomplete device info: %+v", info)
	}
}
