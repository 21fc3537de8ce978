package logs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"grabit/internal/api"
	"grabit/internal/logging"
	"grabit/internal/logs"
)

// stubStreamAPI serves handler over a local HTTP server and returns a stream
// client pointed at it.
func stubStreamAPI(t *testing.T, handler http.HandlerFunc) *logs.StreamClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := logs.NewStreamClient(srv.URL)
	if err != nil {
		t.Fatalf("NewStreamClient(%q): %v", srv.URL, err)
	}
	return client
}

func TestStreamClientNilForBlankBind(t *testing.T) {
	client, err := logs.NewStreamClient("   ")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	if client != nil {
		t.Fatal("want nil client for blank bind")
	}
}

func TestFetchBuildsQueryAndDecodes(t *testing.T) {
	var seen url.Values
	client := stubStreamAPI(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []logging.LogEvent{{
				Timestamp: time.Now().UTC(),
				Level:     "info",
				Message:   "pipeline started",
			}},
			Next: 17,
		})
	})

	resp, err := client.Fetch(context.Background(), logs.StreamQuery{
		Since:     7,
		Limit:     25,
		Follow:    true,
		Tail:      true,
		Component: "orchestrator",
		TaskID:    "single_abc12345_1700000000",
		Level:     "warn",
		Search:    "disk",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(resp.Events) != 1 || resp.Next != 17 {
		t.Fatalf("Fetch returned %+v, want one event and next 17", resp)
	}

	wantParams := map[string]string{
		"since":     "7",
		"limit":     "25",
		"follow":    "1",
		"tail":      "1",
		"component": "orchestrator",
		"task":      "single_abc12345_1700000000",
		"level":     "warn",
		"search":    "disk",
	}
	for key, want := range wantParams {
		if got := seen.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
}

func TestFetchSendsBearerToken(t *testing.T) {
	var gotAuth string
	client := stubStreamAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{})
	})

	client.SetToken("  secret-token  ")
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{}); err != nil {
		t.Fatalf("Fetch with token: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization header %q, want trimmed bearer token", gotAuth)
	}

	client.SetToken("")
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{}); err != nil {
		t.Fatalf("Fetch without token: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("Authorization header %q after clearing token, want none", gotAuth)
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	client := stubStreamAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{}); err == nil {
		t.Fatal("want error for 500 response")
	}
}

func TestAPIUnavailableDetection(t *testing.T) {
	if !logs.IsAPIUnavailable(logs.ErrAPIUnavailable) {
		t.Error("sentinel must read as unavailable")
	}
	dialFailure := &url.Error{
		Op:  "Get",
		URL: "http://127.0.0.1:1/api/logs",
		Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")},
	}
	if !logs.IsAPIUnavailable(dialFailure) {
		t.Error("wrapped dial failure must read as unavailable")
	}
	if logs.IsAPIUnavailable(errors.New("boom")) {
		t.Error("generic errors must not read as unavailable")
	}
}
