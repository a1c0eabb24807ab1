package twitchapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"autoclip/cache"
)

const defaultHelixURL = "https://api.twitch.tv/helix"

// HelixClient provides the channel-browsing surface: user lookup and archived VODs.
// Responses are cached through the shared TTL cache when one is configured.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	BaseURL        string // defaults to the public Helix endpoint
	HTTPClient     *http.Client
	Cache          *cache.Cache
}

// User is the subset of a Helix user the frontend needs.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	ProfileImageURL string `json:"profile_image_url"`
	OfflineImageURL string `json:"offline_image_url"`
	CreatedAt       string `json:"created_at"`
}

// Video is the subset of a Helix archive video the frontend needs.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Duration     string `json:"duration"`
	ViewCount    int    `json:"view_count"`
}

// UserByLogin resolves a login name to its user record.
func (hc *HelixClient) UserByLogin(ctx context.Context, login string) (*User, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	v, err := hc.cached(ctx, "helix:user:"+login, func(ctx context.Context) (any, error) {
		var body struct {
			Data []User `json:"data"`
		}
		q := url.Values{"login": {login}}
		if err := hc.get(ctx, "users", q, &body); err != nil {
			return nil, err
		}
		if len(body.Data) == 0 {
			return nil, &APIError{Op: "users", Status: http.StatusNotFound, Message: "user not found"}
		}
		return &body.Data[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

// VideosForUser lists up to 100 archive videos for a user, newest first.
func (hc *HelixClient) VideosForUser(ctx context.Context, userID string) ([]Video, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID empty")
	}
	v, err := hc.cached(ctx, "helix:videos:"+userID, func(ctx context.Context) (any, error) {
		var body struct {
			Data []Video `json:"data"`
		}
		q := url.Values{"user_id": {userID}, "type": {"archive"}, "first": {"100"}}
		if err := hc.get(ctx, "videos", q, &body); err != nil {
			return nil, err
		}
		return body.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Video), nil
}

func (hc *HelixClient) cached(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	if hc.Cache == nil {
		return fetch(ctx)
	}
	return hc.Cache.GetOrFetch(ctx, key, fetch)
}

func (hc *HelixClient) get(ctx context.Context, path string, q url.Values, out any) error {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	base := hc.BaseURL
	if base == "" {
		base = defaultHelixURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := orDefault(hc.HTTPClient).Do(req)
	if err != nil {
		return err
	}
	return decodeBody(path, resp, out)
}
