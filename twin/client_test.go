package twin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chaossec-io/chaossec/types"
)

type staticTokens string

func (s staticTokens) GetToken(context.Context) (string, error) { return string(s), nil }

type failingTokens struct{ err error }

func (f failingTokens) GetToken(context.Context) (string, error) { return "", f.err }

func testRun() *types.RunContext {
	return &types.RunContext{
		CorrelationID: "chaossec-test",
		SafetyMode:    true,
		Target:        "staging-bucket",
		StartedAt:     time.Now().UTC(),
	}
}

func TestCreateTwin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/twins" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["target"] != "staging-bucket" || body["correlation_id"] != "chaossec-test" {
			t.Errorf("body = %v", body)
		}
		_ = json.NewEncoder(w).Encode(Twin{ID: "twin-42", Target: "staging-bucket", State: "ready"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, staticTokens("tok-1"), 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	twin, err := client.CreateTwin(context.Background(), testRun())
	if err != nil {
		t.Fatalf("CreateTwin: %v", err)
	}
	if twin.ID != "twin-42" {
		t.Errorf("twin.ID = %q", twin.ID)
	}
}

func TestSimulateChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/twins/twin-42/simulate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(SimulationResult{
			TwinID: "twin-42", Action: "make_s3_public", Safe: true, Impact: "bucket readable",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, staticTokens("tok-1"), 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	result, err := client.SimulateChange(context.Background(), "twin-42", types.ActionMakeS3Public)
	if err != nil {
		t.Fatalf("SimulateChange: %v", err)
	}
	if !result.Safe || result.Impact != "bucket readable" {
		t.Errorf("result = %+v", result)
	}
}

func TestCreateTwinServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, staticTokens("tok-1"), 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.CreateTwin(context.Background(), testRun())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !errors.Is(err, types.ErrAdapterUnavailable) {
		t.Errorf("error %v is not ErrAdapterUnavailable", err)
	}
}

func TestCreateTwinMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, staticTokens("tok-1"), 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.CreateTwin(context.Background(), testRun()); err == nil {
		t.Error("expected error for response without twin_id")
	}
}

func TestTokenFailureSurfaces(t *testing.T) {
	authErr := types.NewFault(types.ErrAuthentication, "token_exchange", errors.New("rejected"))
	client, err := NewClient("http://127.0.0.1:1", failingTokens{err: authErr}, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.CreateTwin(context.Background(), testRun())
	if !errors.Is(err, types.ErrAuthentication) {
		t.Errorf("error %v is not ErrAuthentication", err)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("", nil, 0); err == nil {
		t.Error("expected error for empty base URL")
	}
}
