package twitchapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultUsherURL = "https://usher.ttvnw.net"

// CDNClient fetches HLS playlists from the Twitch CDN. Playlists are never
// cached; segment URLs inside them carry short-lived signatures.
type CDNClient struct {
	UsherBaseURL string
	HTTPClient   *http.Client
}

// MasterPlaylist resolves a VOD's master playlist and returns the first variant
// URL it lists (by convention the source quality).
func (c *CDNClient) MasterPlaylist(ctx context.Context, videoID string, nauth *Nauth) (string, error) {
	base := c.UsherBaseURL
	if base == "" {
		base = defaultUsherURL
	}
	q := url.Values{
		"nauth":            {nauth.Value},
		"nauthsig":         {nauth.Signature},
		"allow_source":     {"true"},
		"allow_spectre":    {"true"},
		"allow_audio_only": {"true"},
		"player":           {"twitchweb"},
	}
	u := base + "/vod/" + videoID + ".m3u8?" + q.Encode()
	body, _, err := c.fetchText(ctx, "master_playlist", u)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line, nil
		}
	}
	return "", &APIError{Op: "master_playlist", Status: http.StatusOK, Message: "no media playlist url in master playlist"}
}

// MediaPlaylist fetches the raw media playlist text plus its URL for resolving
// relative segment URIs.
func (c *CDNClient) MediaPlaylist(ctx context.Context, rawURL string) (string, *url.URL, error) {
	return c.fetchText(ctx, "media_playlist", rawURL)
}

func (c *CDNClient) fetchText(ctx context.Context, op, rawURL string) (string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := orDefault(c.HTTPClient).Do(req)
	if err != nil {
		return "", nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", nil, &APIError{Op: op, Status: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	return string(b), resp.Request.URL, nil
}
