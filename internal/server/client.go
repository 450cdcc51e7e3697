package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julianstephens/habitrefresh/internal/constants"
)

// ErrDaemonUnreachable means no daemon answered on the control address
var ErrDaemonUnreachable = errors.New("daemon not reachable")

// Client talks to a running daemon's control API
type Client struct {
	base   string
	secret string
	http   *http.Client
}

// NewClient targets the daemon at addr. secret may be empty when the daemon
// runs without one.
func NewClient(addr, secret string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		secret: secret,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, http.MethodGet, "/v1/status", &status)
	return status, err
}

// Refresh enqueues a cycle and returns its ID
func (c *Client) Refresh(ctx context.Context, reason string) (string, error) {
	var body struct {
		CycleID string `json:"cycle_id"`
	}
	path := "/v1/refresh"
	if reason != "" {
		path += "?reason=" + url.QueryEscape(reason)
	}
	err := c.do(ctx, http.MethodPost, path, &body)
	return body.CycleID, err
}

func (c *Client) Recover(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/recover", nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.secret != "" {
		req.Header.Set(constants.ControlSecretHeader, c.secret)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrDaemonUnreachable, c.base, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", res.StatusCode, e.Error)
		}
		return fmt.Errorf("daemon returned %d", res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
