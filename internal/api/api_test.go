package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chronocam/chronocam/internal/camera"
	"github.com/chronocam/chronocam/internal/config"
	"github.com/chronocam/chronocam/internal/health"
	"github.com/chronocam/chronocam/internal/scheduler"
	"github.com/chronocam/chronocam/internal/snapshot"
	"github.com/chronocam/chronocam/pkg/events"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any)            {}
func (testLogger) Info(msg string, args ...any)             {}
func (testLogger) Warn(msg string, args ...any)             {}
func (testLogger) Error(msg string, err error, args ...any) {}

type fakeCamera struct {
	fetchErr error
}

func (f *fakeCamera) Fetch(ctx context.Context, sched *config.Schedule) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return []byte("img"), nil
}

func (f *fakeCamera) Probe(ctx context.Context, sched *config.Schedule) camera.ProbeResult {
	return camera.ProbeResult{OK: true, Code: "200", Message: "camera reachable"}
}

func (f *fakeCamera) Timeout() time.Duration { return 15 * time.Second }

func newTestServer(t *testing.T, cam *fakeCamera) *Server {
	t.Helper()

	sched := config.DefaultSchedule()
	sched.CamURL = "http://cam.local/snapshot.jpg"
	sched.Password = "secret"
	sched.ActiveStart = "00:00"
	sched.ActiveEnd = "23:59"
	sched.ActiveDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

	dir := t.TempDir()
	factory := func(s *config.Schedule) (scheduler.Store, error) {
		return snapshot.NewStore(filepath.Join(dir, "pictures"), s.RetainHistory, nil, testLogger{})
	}
	schedStore := config.NewScheduleStore(filepath.Join(dir, "config.json"), testLogger{})
	bus := events.NewBus(64, testLogger{})

	sch, err := scheduler.New(sched, cam, factory, health.NewTracker(3), bus, schedStore, testLogger{})
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	return NewServer(config.Load(), sch, bus, testLogger{})
}

func doRequest(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}

	var resp struct {
		Status   string            `json:"status"`
		Version  string            `json:"version"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != Version {
		t.Fatalf("version=%q", resp.Version)
	}
	if resp.Services["api"] != "running" {
		t.Fatalf("services=%v", resp.Services)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}

	var report scheduler.StatusReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.State != "running" {
		t.Fatalf("state=%q", report.State)
	}
	if report.CameraHealth.Status != health.StatusOK {
		t.Fatalf("camera health=%q", report.CameraHealth.Status)
	}
}

func TestControlPauseResume(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/control/pause", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("pause: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/status", "")
	var report scheduler.StatusReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Paused || report.State != "paused" {
		t.Fatalf("after pause: %+v", report)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/control/resume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/status", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Paused {
		t.Fatal("still paused after resume")
	}
}

func TestControlSnapshot(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/control/snapshot", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("snapshot: %d %s", rec.Code, rec.Body.String())
	}
}

func TestControlSnapshotFailure(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{
		fetchErr: camera.NewError(camera.CodeTimeout, "request timed out"),
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/control/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}

	var resp struct {
		OK    bool `json:"ok"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OK || resp.Error.Code != "timeout" {
		t.Fatalf("response: %s", rec.Body.String())
	}
}

func TestConfigGetMasksPassword(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatal("password leaked in config response")
	}
}

func TestConfigReload(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/config", `{"interval_seconds": 60}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/config", "")
	var sched config.Schedule
	if err := json.Unmarshal(rec.Body.Bytes(), &sched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sched.IntervalSeconds != 60 {
		t.Fatalf("interval=%d, want 60", sched.IntervalSeconds)
	}
	// Untouched fields survive the partial update
	if sched.CamURL != "http://cam.local/snapshot.jpg" {
		t.Fatalf("cam_url=%q", sched.CamURL)
	}
}

func TestConfigReloadRejectsInvalid(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"end before start", `{"active_start":"18:00","active_end":"06:00"}`},
		{"zero interval", `{"interval_seconds":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/config", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}

	// The running schedule is untouched
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/config", "")
	var sched config.Schedule
	if err := json.Unmarshal(rec.Body.Bytes(), &sched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sched.ActiveStart != "00:00" {
		t.Fatalf("active_start=%q after rejected reloads", sched.ActiveStart)
	}
}

func TestSnapshotsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	// Empty archive returns an empty list, not null
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/snapshots", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp struct {
		Snapshots []string `json:"snapshots"`
		Count     int      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Snapshots == nil || resp.Count != 0 {
		t.Fatalf("empty archive response: %s", rec.Body.String())
	}

	doRequest(t, srv, http.MethodPost, "/api/v1/control/snapshot", "")

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/snapshots", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Snapshots) != 1 {
		t.Fatalf("archive after capture: %s", rec.Body.String())
	}
}

func TestRootAndNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), Version) {
		t.Fatalf("root: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeCamera{})

	rec := doRequest(t, srv, http.MethodOptions, "/api/v1/status", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS headers on preflight")
	}
}
