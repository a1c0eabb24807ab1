package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"autoclip/cache"
)

func newGQLServer(t *testing.T, handler http.HandlerFunc) *GQLClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gql", handler)
	mux.HandleFunc("/integrity", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "integrity-tok"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &GQLClient{
		URL:          srv.URL + "/gql",
		IntegrityURL: srv.URL + "/integrity",
		HTTPClient:   srv.Client(),
	}
}

func TestVideoMetadata(t *testing.T) {
	c := newGQLServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"video": map[string]any{
					"title":         "stream vod",
					"status":        "recorded",
					"lengthSeconds": 7200,
					"owner":         map[string]any{"id": "owner-1"},
				},
			},
		})
	})
	md, err := c.VideoMetadata(context.Background(), "123456")
	if err != nil {
		t.Fatal(err)
	}
	if md.Title != "stream vod" || md.Status != "recorded" || md.LengthSeconds != 7200 || md.OwnerID != "owner-1" {
		t.Fatalf("unexpected metadata %+v", md)
	}
}

func TestVideoMetadataNotFound(t *testing.T) {
	c := newGQLServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"video": nil}})
	})
	_, err := c.VideoMetadata(context.Background(), "123456")
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}

func TestGQLErrorEnvelope(t *testing.T) {
	// Twitch can deliver its error envelope with HTTP 200.
	c := newGQLServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "Service Unavailable",
			"status":  503,
			"message": "service unavailable",
		})
	})
	_, err := c.VideoMetadata(context.Background(), "123456")
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if ae.Status != 503 {
		t.Fatalf("status = %d, want 503", ae.Status)
	}
}

func TestVideoCommentsPaging(t *testing.T) {
	c := newGQLServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		// The paging key determines which page we serve.
		if _, byOffset := body.Variables["contentOffsetSeconds"]; byOffset {
			_ = json.NewEncoder(w).Encode(commentPageDoc("c1", "m-1", 5, true))
			return
		}
		_ = json.NewEncoder(w).Encode(commentPageDoc("", "m-2", 15, false))
	})

	page, err := c.VideoComments(context.Background(), "123456", "contentOffsetSeconds", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Edges) != 1 || page.Edges[0].Node.ID != "m-1" {
		t.Fatalf("unexpected first page %+v", page)
	}
	if !page.PageInfo.HasNextPage {
		t.Fatal("expected next page")
	}

	page, err = c.VideoComments(context.Background(), "123456", "cursor", page.Edges[0].Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if page.Edges[0].Node.ID != "m-2" || page.PageInfo.HasNextPage {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func commentPageDoc(cursor, id string, offset int, hasNext bool) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"video": map[string]any{
				"comments": map[string]any{
					"edges": []map[string]any{{
						"cursor": cursor,
						"node": map[string]any{
							"id":                   id,
							"contentOffsetSeconds": offset,
							"commenter":            map[string]any{"id": "u1", "displayName": "User"},
							"message": map[string]any{
								"fragments": []map[string]any{{"text": "hello"}},
							},
						},
					}},
					"pageInfo": map[string]any{"hasNextPage": hasNext},
				},
			},
		},
	}
}

func TestPlaybackAccessToken(t *testing.T) {
	c := newGQLServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"videoPlaybackAccessToken": map[string]any{
					"value":     "nauth-value",
					"signature": "nauth-sig",
				},
			},
		})
	})
	nauth, err := c.PlaybackAccessToken(context.Background(), "123456")
	if err != nil {
		t.Fatal(err)
	}
	if nauth.Value != "nauth-value" || nauth.Signature != "nauth-sig" {
		t.Fatalf("unexpected nauth %+v", nauth)
	}
}

func TestGQLResponseCaching(t *testing.T) {
	var calls atomic.Int32
	c := newGQLServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"video": map[string]any{
					"title": "t", "status": "recorded", "lengthSeconds": 1,
					"owner": map[string]any{"id": "o"},
				},
			},
		})
	})
	c.Cache = cache.New(time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := c.VideoMetadata(context.Background(), "123456"); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("identical queries hit upstream %d times, want 1", calls.Load())
	}
}

func TestSetIntegrityHeaders(t *testing.T) {
	var gotIntegrity, gotDevice string
	c := newGQLServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotIntegrity = r.Header.Get("Client-Integrity")
		gotDevice = r.Header.Get("X-Device-ID")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"videoPlaybackAccessToken": map[string]any{"value": "v", "signature": "s"},
			},
		})
	})
	if err := c.SetIntegrity(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.PlaybackAccessToken(context.Background(), "123456"); err != nil {
		t.Fatal(err)
	}
	if gotIntegrity != "integrity-tok" {
		t.Fatalf("Client-Integrity = %q", gotIntegrity)
	}
	if len(gotDevice) != 32 {
		t.Fatalf("X-Device-ID = %q, want 32 chars", gotDevice)
	}
}
