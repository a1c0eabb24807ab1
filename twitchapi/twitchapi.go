// Package twitchapi contains clients for the Twitch surfaces this service consumes:
// the Helix REST API (app token flow), the website GQL endpoint (video metadata,
// VOD comments, playback access tokens), third-party emote providers, and the
// usher CDN for HLS playlists.
package twitchapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// EmoteRef identifies a single emote occurrence resolved in a chat line.
type EmoteRef struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Emote sources.
const (
	SourceTwitch = "twitch"
	SourceBTTV   = "bttv"
	SourceFFZ    = "ffz"
	Source7TV    = "7tv"
)

// APIError reports a malformed or non-success upstream response.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("twitch %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("twitch %s: status %d", e.Op, e.Status)
}

// errorEnvelope mirrors Twitch's standard error body, which can arrive with an
// HTTP 200 on the GQL endpoint.
type errorEnvelope struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// decodeBody reads a response, surfacing Twitch error envelopes and non-2xx
// statuses as *APIError before unmarshalling into out.
func decodeBody(op string, resp *http.Response, out any) error {
	defer closeBody(resp)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Status != 0 && env.Message != "" {
		return &APIError{Op: op, Status: env.Status, Message: env.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, Status: resp.StatusCode}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(resp.Body)
}

func unmarshal(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}

func orDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
