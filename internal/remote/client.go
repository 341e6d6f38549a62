// Package remote is the HTTP client for the Koinonia server's member
// endpoints. All calls are best-effort: they carry a bounded timeout and
// return an error the caller is expected to log and move past, since the
// desktop agent must keep working offline.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/evertran/koinonia-desktop/internal/errors"
	"github.com/evertran/koinonia-desktop/internal/logger"
)

// Platform identifies this client family to the server.
const Platform = "electron"

// DeviceInfo describes the machine a token registration came from.
type DeviceInfo struct {
	Platform   string `json:"platform"`
	OSType     string `json:"osType"`
	DeviceName string `json:"deviceName"`
}

// LocalDeviceInfo builds the DeviceInfo for the current machine
func LocalDeviceInfo() DeviceInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return DeviceInfo{
		Platform:   Platform,
		OSType:     runtime.GOOS,
		DeviceName: hostname,
	}
}

// Client talks to the Koinonia server's member API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a remote API client for the given base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.NewComponentLogger("RemoteClient"),
	}
}

// Heartbeat reports member presence to the server
func (c *Client) Heartbeat(ctx context.Context, memberID string) error {
	payload := map[string]string{
		"memberId": memberID,
		"platform": Platform,
	}
	if err := c.post(ctx, "/api/members/heartbeat", payload); err != nil {
		return errors.Wrap(err, "heartbeat for member %s", logger.MaskIdentity(memberID))
	}
	c.logger.Debug("Heartbeat sent for member %s", logger.MaskIdentity(memberID))
	return nil
}

// UpdateToken registers the device token for a member
func (c *Client) UpdateToken(ctx context.Context, memberID, deviceToken string, info DeviceInfo) error {
	payload := map[string]interface{}{
		"token":      deviceToken,
		"memberId":   memberID,
		"deviceInfo": info,
	}
	if err := c.post(ctx, "/api/members/update-token", payload); err != nil {
		return errors.Wrap(err, "token registration for member %s", logger.MaskIdentity(memberID))
	}
	c.logger.Info("Registered device token %s for member %s",
		logger.MaskToken(deviceToken), logger.MaskIdentity(memberID))
	return nil
}

// Logout tells the server this member's desktop session ended
func (c *Client) Logout(ctx context.Context, memberID string) error {
	payload := map[string]string{
		"memberId": memberID,
		"platform": Platform,
	}
	if err := c.post(ctx, "/api/logout", payload); err != nil {
		return errors.Wrap(err, "logout for member %s", logger.MaskIdentity(memberID))
	}
	c.logger.Info("Server logout completed for member %s", logger.MaskIdentity(memberID))
	return nil
}

// post sends a JSON body and requires a 2xx response
func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, snippet)
	}

	return nil
}
