package twitchapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"autoclip/cache"
)

// webClientID is the Twitch website's public client id; the GQL endpoint only
// accepts requests presenting it.
const webClientID = "ue6666qo983tsx6so1t0vnawi233wa"

const (
	defaultGQLURL       = "https://gql.twitch.tv/gql"
	defaultIntegrityURL = "https://gql.twitch.tv/integrity"

	commentsQueryHash = "b70a3591ff0f4e0313d126c6a1502d79a1c02baebb288227c582044aa76adf6a"
	nauthQueryHash    = "0828119ded1c13477966434e15800ff57ddacf13ba1911c129dc2200705b0712"
)

// GQLClient talks to the Twitch website GQL endpoint for the internal surfaces
// Helix doesn't expose: video metadata with status, VOD comments, and playback
// access tokens. Responses are cached through the shared TTL cache.
type GQLClient struct {
	URL          string // defaults to the public GQL endpoint
	IntegrityURL string
	HTTPClient   *http.Client
	Cache        *cache.Cache

	mu        sync.Mutex
	deviceID  string
	integrity string
}

// VideoMetadata is the internal video record.
type VideoMetadata struct {
	Title         string
	Status        string
	LengthSeconds int
	OwnerID       string
}

// CommentNode is a single chat message attached to a VOD.
type CommentNode struct {
	ID                   string `json:"id"`
	ContentOffsetSeconds int    `json:"contentOffsetSeconds"`
	Commenter            *struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"commenter"`
	Message struct {
		Fragments []CommentFragment `json:"fragments"`
	} `json:"message"`
}

// CommentFragment is a run of message text, optionally backed by a native emote.
type CommentFragment struct {
	Text  string `json:"text"`
	Emote *struct {
		EmoteID string `json:"emoteID"`
	} `json:"emote"`
}

// CommentPage is one page of the VideoCommentsByOffsetOrCursor query.
type CommentPage struct {
	Edges []struct {
		Cursor string      `json:"cursor"`
		Node   CommentNode `json:"node"`
	} `json:"edges"`
	PageInfo struct {
		HasNextPage bool `json:"hasNextPage"`
	} `json:"pageInfo"`
}

// Nauth is a signed playback authorization token for the CDN.
type Nauth struct {
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

// SetIntegrity lazily provisions the device id and Client-Integrity token the
// GQL endpoint expects. Safe to call repeatedly; a failed fetch is retried on
// the next call.
func (c *GQLClient) SetIntegrity(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceID == "" {
		c.deviceID = randomDeviceID()
	}
	if c.integrity != "" {
		return nil
	}
	u := c.IntegrityURL
	if u == "" {
		u = defaultIntegrityURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	setGQLHeaders(req, c.deviceID, c.integrity)
	resp, err := orDefault(c.HTTPClient).Do(req)
	if err != nil {
		return err
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody("integrity", resp, &body); err != nil {
		return err
	}
	c.integrity = body.Token
	return nil
}

// VideoMetadata fetches title, status, length and owner for a VOD.
func (c *GQLClient) VideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	query := fmt.Sprintf(`
	query {
		video(id:%q) {
			title,
			status,
			lengthSeconds,
			owner {
				id
			}
		}
	}`, videoID)
	var body struct {
		Data struct {
			Video *struct {
				Title         string `json:"title"`
				Status        string `json:"status"`
				LengthSeconds int    `json:"lengthSeconds"`
				Owner         struct {
					ID string `json:"id"`
				} `json:"owner"`
			} `json:"video"`
		} `json:"data"`
	}
	req := map[string]any{"query": query, "variables": map[string]any{}}
	if err := c.post(ctx, "video_metadata", req, &body); err != nil {
		return nil, err
	}
	if body.Data.Video == nil {
		return nil, &APIError{Op: "video_metadata", Status: http.StatusNotFound, Message: "video not found"}
	}
	v := body.Data.Video
	return &VideoMetadata{Title: v.Title, Status: v.Status, LengthSeconds: v.LengthSeconds, OwnerID: v.Owner.ID}, nil
}

// VideoComments fetches one page of VOD comments. key is either
// "contentOffsetSeconds" (with an integer offset) or "cursor" (with a cursor
// string from a previous page).
func (c *GQLClient) VideoComments(ctx context.Context, videoID, key string, value any) (*CommentPage, error) {
	req := map[string]any{
		"operationName": "VideoCommentsByOffsetOrCursor",
		"variables":     map[string]any{"videoID": videoID, key: value},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{"version": 1, "sha256Hash": commentsQueryHash},
		},
	}
	var body struct {
		Data struct {
			Video *struct {
				Comments CommentPage `json:"comments"`
			} `json:"video"`
		} `json:"data"`
	}
	if err := c.post(ctx, "video_comments", req, &body); err != nil {
		return nil, err
	}
	if body.Data.Video == nil {
		return nil, &APIError{Op: "video_comments", Status: http.StatusNotFound, Message: "video not found"}
	}
	return &body.Data.Video.Comments, nil
}

// PlaybackAccessToken fetches the signed nauth the CDN requires for a VOD.
func (c *GQLClient) PlaybackAccessToken(ctx context.Context, videoID string) (*Nauth, error) {
	req := map[string]any{
		"operationName": "PlaybackAccessToken",
		"variables": map[string]any{
			"isLive":     false,
			"login":      "",
			"isVod":      true,
			"vodID":      videoID,
			"playerType": "channel_home_live",
		},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{"version": 1, "sha256Hash": nauthQueryHash},
		},
	}
	var body struct {
		Data struct {
			VideoPlaybackAccessToken *Nauth `json:"videoPlaybackAccessToken"`
		} `json:"data"`
	}
	if err := c.post(ctx, "playback_access_token", req, &body); err != nil {
		return nil, err
	}
	if body.Data.VideoPlaybackAccessToken == nil {
		return nil, &APIError{Op: "playback_access_token", Status: http.StatusNotFound, Message: "no playback access token"}
	}
	return body.Data.VideoPlaybackAccessToken, nil
}

// post sends a GQL request, serving repeated identical requests from the cache.
func (c *GQLClient) post(ctx context.Context, op string, reqBody any, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	fetch := func(ctx context.Context) (any, error) {
		u := c.URL
		if u == "" {
			u = defaultGQLURL
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		deviceID, integrity := c.deviceID, c.integrity
		c.mu.Unlock()
		setGQLHeaders(req, deviceID, integrity)
		resp, err := orDefault(c.HTTPClient).Do(req)
		if err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := decodeBody(op, resp, &raw); err != nil {
			return nil, err
		}
		return []byte(raw), nil
	}
	var raw any
	if c.Cache != nil {
		raw, err = c.Cache.GetOrFetch(ctx, "gql:"+string(payload), fetch)
	} else {
		raw, err = fetch(ctx)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw.([]byte), out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func setGQLHeaders(req *http.Request, deviceID, integrity string) {
	req.Header.Set("Client-ID", webClientID)
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	if deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
	}
	if integrity != "" {
		req.Header.Set("Client-Integrity", integrity)
	}
}

// randomDeviceID mimics the browser's 32-character alphanumeric device id.
func randomDeviceID() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	var sb strings.Builder
	for _, v := range b {
		sb.WriteByte(alphabet[int(v)%len(alphabet)])
	}
	return sb.String()
}
