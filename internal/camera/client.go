// Package camera fetches still images from the configured webcam
// endpoint. One fetch is one HTTP GET: retries and backoff belong to
// the scheduler so that health accounting sees every attempt.
package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chronocam/chronocam/internal/config"
)

const (
	// DefaultMinImageSize is the smallest body accepted as a valid
	// still image (guards against cameras returning error pages
	// with a 200)
	DefaultMinImageSize = 1024

	// probeTimeout bounds the lightweight reachability check
	probeTimeout = 5 * time.Second

	// maxBodySize caps how much of a response we are willing to read
	maxBodySize = 32 << 20
)

// Client fetches snapshots from a webcam under the auth scheme the
// schedule names. It holds no shared state beyond the HTTP client.
type Client struct {
	http         *http.Client
	timeout      time.Duration
	minImageSize int
	logger       interface {
		Debug(string, ...any)
		Info(string, ...any)
	}
}

// NewClient creates a camera client with the given fetch timeout.
// A timeout <= 0 uses the default.
func NewClient(timeout time.Duration, logger interface {
	Debug(string, ...any)
	Info(string, ...any)
}) *Client {
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	return &Client{
		http:         &http.Client{},
		timeout:      timeout,
		minImageSize: DefaultMinImageSize,
		logger:       logger,
	}
}

// Timeout returns the configured fetch timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Fetch performs one authenticated GET against the snapshot URL and
// returns the image bytes. Failures come back as *Error with a
// classified code; Fetch never retries.
func (c *Client) Fetch(ctx context.Context, sched *config.Schedule) ([]byte, error) {
	if sched.CamURL == "" {
		return nil, NewError(CodeNoURL, "no camera URL configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("fetching snapshot", "url", sched.CamURL, "auth", sched.AuthType)

	resp, err := c.get(ctx, sched)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{
			Code:       CodeAuthFailed,
			Message:    fmt.Sprintf("camera rejected credentials (%s)", http.StatusText(resp.StatusCode)),
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Error{
			Code:       CodeHTTPError,
			Message:    fmt.Sprintf("camera responded with status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransport(err)
	}

	if len(body) < c.minImageSize || !looksLikeImage(body) {
		return nil, NewError(CodeInvalidContent, fmt.Sprintf("response is not a decodable image (%d bytes)", len(body)))
	}

	return body, nil
}

// get issues the request under the schedule's auth scheme
func (c *Client) get(ctx context.Context, sched *config.Schedule) (*http.Response, error) {
	switch sched.AuthType {
	case config.AuthDigest:
		if sched.Username != "" {
			return c.doDigest(ctx, http.MethodGet, sched.CamURL, sched.Username, sched.Password)
		}
	case config.AuthBasic:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sched.CamURL, nil)
		if err != nil {
			return nil, err
		}
		if sched.Username != "" {
			req.SetBasicAuth(sched.Username, sched.Password)
		}
		return c.http.Do(req)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sched.CamURL, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// ProbeResult is the outcome of a lightweight reachability check
type ProbeResult struct {
	OK      bool
	Code    string
	Message string
}

// Probe checks camera reachability without downloading a snapshot.
// It prefers HEAD and falls back to GET when the camera does not
// implement it, reading only a single chunk.
func (c *Client) Probe(ctx context.Context, sched *config.Schedule) ProbeResult {
	if sched.CamURL == "" {
		return ProbeResult{OK: false, Code: string(CodeNoURL), Message: "no camera URL configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.probeRequest(ctx, sched, http.MethodHead)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		resp.Body.Close()
		resp, err = c.probeRequest(ctx, sched, http.MethodGet)
	}
	if err != nil {
		camErr := classifyTransport(err)
		return ProbeResult{OK: false, Code: string(camErr.Code), Message: camErr.Message}
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.Method == http.MethodGet {
		// Confirm reachability without draining the snapshot
		io.CopyN(io.Discard, resp.Body, 1024)
	}

	if resp.StatusCode < 400 {
		return ProbeResult{OK: true, Code: fmt.Sprint(resp.StatusCode), Message: "camera reachable"}
	}
	return ProbeResult{
		OK:      false,
		Code:    fmt.Sprint(resp.StatusCode),
		Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
	}
}

func (c *Client) probeRequest(ctx context.Context, sched *config.Schedule, method string) (*http.Response, error) {
	if sched.AuthType == config.AuthDigest && sched.Username != "" {
		return c.doDigest(ctx, method, sched.CamURL, sched.Username, sched.Password)
	}
	req, err := http.NewRequestWithContext(ctx, method, sched.CamURL, nil)
	if err != nil {
		return nil, err
	}
	if sched.AuthType == config.AuthBasic && sched.Username != "" {
		req.SetBasicAuth(sched.Username, sched.Password)
	}
	return c.http.Do(req)
}

// looksLikeImage sniffs the body's content type
func looksLikeImage(body []byte) bool {
	return strings.HasPrefix(http.DetectContentType(body), "image/")
}
