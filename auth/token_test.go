package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chaossec-io/chaossec/types"
)

func newTokenServer(t *testing.T, calls *atomic.Int64, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		if got := r.Form.Get("client_id"); got != "chaossec" {
			t.Errorf("client_id = %q, want chaossec", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-" + string(rune('0'+n)),
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
}

func newTestManager(t *testing.T, url string) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		TokenURL:     url,
		ClientID:     "chaossec",
		ClientSecret: "secret",
	}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestGetTokenCachesWhileValid(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, &calls, 3600)
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	first, err := m.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	second, err := m.GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if first != second {
		t.Errorf("expected cached token, got %q then %q", first, second)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestGetTokenRefreshesInsideSafetyBuffer(t *testing.T) {
	var calls atomic.Int64
	// 240 seconds lifetime is inside the 5 minute buffer, so every call
	// must trigger a fresh exchange.
	srv := newTokenServer(t, &calls, 240)
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("token endpoint called %d times, want 2", n)
	}
}

func TestGetTokenCoalescesConcurrentRefresh(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-shared",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	var wg sync.WaitGroup
	tokens := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.GetToken(context.Background())
		}(i)
	}

	// Give both goroutines time to reach the coalescing point, then let
	// the single in-flight exchange complete.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("GetToken[%d]: %v", i, errs[i])
		}
		if tokens[i] != "tok-shared" {
			t.Errorf("tokens[%d] = %q, want tok-shared", i, tokens[i])
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
}

func TestGetTokenSurfacesAuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	_, err := m.GetToken(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected credentials")
	}
	if !errors.Is(err, types.ErrAuthentication) {
		t.Errorf("error %v is not ErrAuthentication", err)
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, &calls, 3600)
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	m.Invalidate()
	if _, err := m.GetToken(context.Background()); err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("token endpoint called %d times, want 2", n)
	}
}

func TestNewManagerValidates(t *testing.T) {
	if _, err := NewManager(Config{ClientID: "a", ClientSecret: "b"}, nil); err == nil {
		t.Error("expected error for missing token URL")
	}
	if _, err := NewManager(Config{TokenURL: "http://x"}, nil); err == nil {
		t.Error("expected error for missing credentials")
	}
}
