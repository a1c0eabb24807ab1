// Package testutil provides the httptest-backed Twitch upstream used across
// package tests: Helix, GQL, OAuth, third-party emote APIs, and a segment CDN.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch API responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockUserResponse adds a handler for the /users Helix endpoint
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["/users"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"data": []map[string]string{
				{"id": userID, "login": login, "display_name": login},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockVideosResponse adds a handler for the /videos Helix endpoint
func (m *MockTwitchServer) MockVideosResponse(videos []map[string]any) {
	m.Handlers["/videos"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"data": videos,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth client-credentials endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockGQLResponse adds a handler for /gql that dispatches on the persisted
// query operation name in the request body.
func (m *MockTwitchServer) MockGQLResponse(dispatch func(operation string, variables map[string]any) any) {
	m.Handlers["/gql"] = func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			OperationName string         `json:"operationName"`
			Query         string         `json:"query"`
			Variables     map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		op := body.OperationName
		if op == "" {
			op = "query"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dispatch(op, body.Variables)) //nolint:errcheck // test mock response
	}
}

// MockEmoteResponse adds a handler serving a raw JSON document at path.
func (m *MockTwitchServer) MockEmoteResponse(path string, doc any) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc) //nolint:errcheck // test mock response
	}
}

// MockSegment serves payload at /seg{index}.ts.
func (m *MockTwitchServer) MockSegment(index int, payload []byte) {
	m.Handlers[fmt.Sprintf("/seg%d.ts", index)] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		_, _ = w.Write(payload)
	}
}

// MockSegmentFunc serves /seg{index}.ts from fn, letting tests delay or fail
// individual segment downloads.
func (m *MockTwitchServer) MockSegmentFunc(index int, fn http.HandlerFunc) {
	m.Handlers[fmt.Sprintf("/seg%d.ts", index)] = fn
}
