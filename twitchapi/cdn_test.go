package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMasterPlaylistPicksFirstVariant(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/vod/123456.m3u8") {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-MEDIA:TYPE=VIDEO\n#EXT-X-STREAM-INF:BANDWIDTH=1\nhttps://cdn.example.com/chunked/index.m3u8\nhttps://cdn.example.com/720p/index.m3u8\n"))
	}))
	defer srv.Close()

	c := &CDNClient{UsherBaseURL: srv.URL, HTTPClient: srv.Client()}
	u, err := c.MasterPlaylist(context.Background(), "123456", &Nauth{Value: "v", Signature: "sig"})
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://cdn.example.com/chunked/index.m3u8" {
		t.Fatalf("picked %q, want the first variant", u)
	}
	if gotQuery["nauth"][0] != "v" || gotQuery["nauthsig"][0] != "sig" {
		t.Fatalf("nauth query missing: %v", gotQuery)
	}
	if gotQuery["allow_source"][0] != "true" {
		t.Fatalf("allow_source missing: %v", gotQuery)
	}
}

func TestMasterPlaylistNoVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-MEDIA:TYPE=VIDEO\n"))
	}))
	defer srv.Close()

	c := &CDNClient{UsherBaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.MasterPlaylist(context.Background(), "123456", &Nauth{})
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestMediaPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:10.0,\nseg0.ts\n"))
	}))
	defer srv.Close()

	c := &CDNClient{HTTPClient: srv.Client()}
	text, base, err := c.MediaPlaylist(context.Background(), srv.URL+"/vod/chunked/index.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "seg0.ts") {
		t.Fatalf("unexpected playlist %q", text)
	}
	if base.Path != "/vod/chunked/index.m3u8" {
		t.Fatalf("base url = %v", base)
	}
}

func TestMediaPlaylistUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	c := &CDNClient{HTTPClient: srv.Client()}
	_, _, err := c.MediaPlaylist(context.Background(), srv.URL+"/index.m3u8")
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != http.StatusForbidden {
		t.Fatalf("expected 403 APIError, got %v", err)
	}
}
