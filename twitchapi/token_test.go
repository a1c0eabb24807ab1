package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func newTokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"expires_in":   3600,
			"token_type":   "bearer",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenSourceGet(t *testing.T) {
	var calls atomic.Int32
	srv := newTokenServer(t, &calls)

	ts := &TokenSource{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		HTTPClient:   srv.Client(),
	}
	tok, err := ts.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "tok-abc" {
		t.Fatalf("token = %q", tok)
	}

	// Second call is served from the cached token.
	if _, err := ts.Get(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Fatalf("token endpoint called %d times, want 1", calls.Load())
	}
}

func TestTokenSourceSingleFlight(t *testing.T) {
	var calls atomic.Int32
	srv := newTokenServer(t, &calls)

	ts := &TokenSource{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		HTTPClient:   srv.Client(),
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ts.Get(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("concurrent gets triggered %d refreshes, want 1", calls.Load())
	}
}

func TestTokenSourceMissingCredentials(t *testing.T) {
	ts := &TokenSource{}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected an error without credentials")
	}
}
