package camera

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chronocam/chronocam/internal/config"
)

type testLogger struct{}

func (testLogger) Debug(msg string, args ...any) {}
func (testLogger) Info(msg string, args ...any)  {}

// fakeJPEG returns a body that sniffs as image/jpeg and clears the
// minimum size check
func fakeJPEG(size int) []byte {
	body := make([]byte, size)
	copy(body, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return body
}

func testClient() *Client {
	return NewClient(2*time.Second, testLogger{})
}

func schedFor(url, authType, user, pass string) *config.Schedule {
	s := config.DefaultSchedule()
	s.CamURL = url
	s.AuthType = authType
	s.Username = user
	s.Password = pass
	return s
}

func TestFetchSuccess(t *testing.T) {
	img := fakeJPEG(4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(img)
	}))
	defer srv.Close()

	got, err := testClient().Fetch(context.Background(), schedFor(srv.URL, config.AuthNone, "", ""))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != len(img) {
		t.Fatalf("got %d bytes, want %d", len(got), len(img))
	}
}

func TestFetchBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(fakeJPEG(2048))
	}))
	defer srv.Close()

	client := testClient()

	if _, err := client.Fetch(context.Background(), schedFor(srv.URL, config.AuthBasic, "admin", "secret")); err != nil {
		t.Fatalf("Fetch with credentials: %v", err)
	}

	_, err := client.Fetch(context.Background(), schedFor(srv.URL, config.AuthBasic, "admin", "wrong"))
	camErr := AsError(err)
	if camErr == nil || camErr.Code != CodeAuthFailed {
		t.Fatalf("expected auth_failed, got %v", err)
	}
	if camErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", camErr.StatusCode)
	}
}

func TestFetchDigestAuth(t *testing.T) {
	const (
		realm = "cam"
		nonce = "abc123def456"
		user  = "admin"
		pass  = "secret"
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate",
				fmt.Sprintf(`Digest realm="%s", nonce="%s", qop="auth"`, realm, nonce))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		fields := map[string]string{}
		for _, kv := range digestRx.FindAllStringSubmatch(auth, -1) {
			fields[strings.ToLower(kv[1])] = kv[2]
		}
		ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", user, realm, pass))
		ha2 := md5Hex(fmt.Sprintf("GET:%s", r.URL.RequestURI()))
		want := md5Hex(fmt.Sprintf("%s:%s:00000001:%s:auth:%s", ha1, nonce, fields["cnonce"], ha2))

		if fields["username"] != user || fields["response"] != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write(fakeJPEG(2048))
	}))
	defer srv.Close()

	if _, err := testClient().Fetch(context.Background(), schedFor(srv.URL, config.AuthDigest, user, pass)); err != nil {
		t.Fatalf("digest fetch: %v", err)
	}
}

func TestFetchClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode Code
	}{
		{"unauthorized", http.StatusUnauthorized, CodeAuthFailed},
		{"forbidden", http.StatusForbidden, CodeAuthFailed},
		{"server error", http.StatusInternalServerError, CodeHTTPError},
		{"not found", http.StatusNotFound, CodeHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := testClient().Fetch(context.Background(), schedFor(srv.URL, config.AuthNone, "", ""))
			camErr := AsError(err)
			if camErr == nil || camErr.Code != tt.wantCode {
				t.Fatalf("got %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestFetchRejectsNonImageContent(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"html error page", []byte(strings.Repeat("<html><body>error</body></html>", 64))},
		{"tiny image", fakeJPEG(64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(tt.body)
			}))
			defer srv.Close()

			_, err := testClient().Fetch(context.Background(), schedFor(srv.URL, config.AuthNone, "", ""))
			camErr := AsError(err)
			if camErr == nil || camErr.Code != CodeInvalidContent {
				t.Fatalf("got %v, want invalid_content", err)
			}
		})
	}
}

func TestFetchWithoutURL(t *testing.T) {
	_, err := testClient().Fetch(context.Background(), schedFor("", config.AuthNone, "", ""))
	camErr := AsError(err)
	if camErr == nil || camErr.Code != CodeNoURL {
		t.Fatalf("got %v, want no_url", err)
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient().Fetch(context.Background(), schedFor(url, config.AuthNone, "", ""))
	camErr := AsError(err)
	if camErr == nil || camErr.Code != CodeUnreachable {
		t.Fatalf("got %v, want unreachable", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(100*time.Millisecond, testLogger{})
	_, err := client.Fetch(context.Background(), schedFor(srv.URL, config.AuthNone, "", ""))
	camErr := AsError(err)
	if camErr == nil || camErr.Code != CodeTimeout {
		t.Fatalf("got %v, want timeout", err)
	}
}

func TestProbeHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	res := testClient().Probe(context.Background(), schedFor(srv.URL, config.AuthNone, "", ""))
	if !res.OK {
		t.Fatalf("probe failed: %+v", res)
	}
}

func TestProbeFallsBackToGet(t *testing.T) {
	var sawGet bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawGet = true
		w.Write(fakeJPEG(8192))
	}))
	defer srv.Close()

	res := testClient().Probe(context.Background(), schedFor(srv.URL, config.AuthNone, "", ""))
	if !res.OK {
		t.Fatalf("probe failed: %+v", res)
	}
	if !sawGet {
		t.Fatal("expected GET fallback after 405 on HEAD")
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := testClient().Probe(context.Background(), schedFor(url, config.AuthNone, "", ""))
	if res.OK {
		t.Fatal("probe against closed server must fail")
	}
	if res.Code != string(CodeUnreachable) {
		t.Fatalf("code=%q, want unreachable", res.Code)
	}
}

func TestParseDigestChallenge(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"full", `Digest realm="cam", nonce="abc", qop="auth"`, false},
		{"no qop defaults to auth", `Digest realm="cam", nonce="abc"`, false},
		{"basic challenge", `Basic realm="cam"`, true},
		{"missing nonce", `Digest realm="cam"`, true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := parseDigestChallenge(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if ch.qop != "auth" {
				t.Fatalf("qop=%q", ch.qop)
			}
		})
	}
}
