package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Target is a DevTools target as listed by /json.
type Target struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the /json/version payload.
type VersionInfo struct {
	Browser      string `json:"Browser"`
	ProtocolVer  string `json:"Protocol-Version"`
	UserAgent    string `json:"User-Agent"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
}

// endpoint performs a request against the DevTools HTTP server and
// decodes a JSON body into out when out is non-nil.
// http.DefaultClient has no timeout; callers pass a bounded context.
func endpoint(ctx context.Context, method, host string, port int, path string, out any) error {
	u := fmt.Sprintf("http://%s:%d%s", host, port, path)
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// FetchVersion retrieves browser version info.
func FetchVersion(ctx context.Context, host string, port int) (*VersionInfo, error) {
	var info VersionInfo
	if err := endpoint(ctx, http.MethodGet, host, port, "/json/version", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// NewTarget opens a new page target loading pageURL. Chrome requires PUT
// for /json/new since version 111.
func NewTarget(ctx context.Context, host string, port int, pageURL string) (*Target, error) {
	var t Target
	if err := endpoint(ctx, http.MethodPut, host, port, "/json/new?"+url.PathEscape(pageURL), &t); err != nil {
		return nil, err
	}
	if t.WebSocketURL == "" {
		return nil, fmt.Errorf("target %s has no WebSocket URL", t.ID)
	}
	return &t, nil
}

// CloseTarget closes the target with the given id.
func CloseTarget(ctx context.Context, host string, port int, id string) error {
	return endpoint(ctx, http.MethodGet, host, port, "/json/close/"+url.PathEscape(id), nil)
}
