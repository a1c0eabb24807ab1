package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"runtime"
	"strings"
	"testing"
	"time"
)

// passthroughRemux copies the concatenated segment bytes straight to the
// response, standing in for ffmpeg.
func passthroughRemux(ctx context.Context, ffmpegPath string, in io.Reader, out io.Writer) error {
	_, err := io.Copy(out, in)
	return err
}

func newClipTestHandlers(t *testing.T, playlist string, segSrv *httptest.Server) (*Handlers, context.Context) {
	t.Helper()
	h, ctx := newTestHandlers(t, &fakeLoader{})
	base, err := url.Parse(segSrv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	h.playlists = &fakePlaylists{playlist: playlist, base: base}
	h.SegmentClient = segSrv.Client()
	h.remux = passthroughRemux
	return h, ctx
}

func newSegmentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/seg0.ts":
			_, _ = w.Write([]byte("SEGA"))
		case "/seg1.ts":
			_, _ = w.Write([]byte("SEGB"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

const clipPlaylist = "#EXTM3U\n#EXTINF:10.0,\nseg0.ts\n#EXTINF:10.0,\nseg1.ts\n"

func TestClipDownload(t *testing.T) {
	segSrv := newSegmentServer(t)
	h, ctx := newClipTestHandlers(t, clipPlaylist, segSrv)

	req := httptest.NewRequest(http.MethodGet,
		"/clip?d="+url.QueryEscape(`{"video":"1234567890","highlights":[{"s":0,"e":5}]}`), nil)
	rec := serve(ctx, h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("clip = %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("Content-Type = %q", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="autoclip_1234567890_`) {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if got := rec.Body.String(); got != "SEGASEGB" {
		t.Fatalf("body = %q, want segments in playlist order", got)
	}
}

func TestClipFilenameStableAcrossHighlightOrder(t *testing.T) {
	segSrv := newSegmentServer(t)
	h, ctx := newClipTestHandlers(t, clipPlaylist, segSrv)

	disposition := func(d string) string {
		req := httptest.NewRequest(http.MethodGet, "/clip?d="+url.QueryEscape(d), nil)
		rec := serve(ctx, h, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("clip = %d %s", rec.Code, rec.Body.String())
		}
		return rec.Header().Get("Content-Disposition")
	}

	a := disposition(`{"video":"1234567890","highlights":[{"s":10,"e":20},{"s":0,"e":5}]}`)
	b := disposition(`{"video":"1234567890","highlights":[{"s":0,"e":5},{"s":10,"e":20}]}`)
	if a != b {
		t.Fatalf("filename depends on highlight order: %q vs %q", a, b)
	}
}

func TestClipValidation(t *testing.T) {
	segSrv := newSegmentServer(t)
	h, ctx := newClipTestHandlers(t, clipPlaylist, segSrv)

	cases := []struct {
		name string
		d    string
	}{
		{"missing payload", ""},
		{"not json", "garbage"},
		{"short video id", `{"video":"ab","highlights":[{"s":0,"e":5}]}`},
		{"no highlights", `{"video":"1234567890","highlights":[]}`},
		{"inverted interval", `{"video":"1234567890","highlights":[{"s":9,"e":3}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/clip?d="+url.QueryEscape(tc.d), nil)
			rec := serve(ctx, h, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("clip = %d, want 400", rec.Code)
			}
		})
	}
}

func TestClipNoMatchingSegments(t *testing.T) {
	segSrv := newSegmentServer(t)
	h, ctx := newClipTestHandlers(t, clipPlaylist, segSrv)

	// The playlist covers [0,20); a highlight at 500s selects nothing.
	req := httptest.NewRequest(http.MethodGet,
		"/clip?d="+url.QueryEscape(`{"video":"1234567890","highlights":[{"s":500,"e":600}]}`), nil)
	rec := serve(ctx, h, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("clip = %d, want 400", rec.Code)
	}
}

func TestClipSegmentFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	h, ctx := newClipTestHandlers(t, clipPlaylist, srv)

	req := httptest.NewRequest(http.MethodGet,
		"/clip?d="+url.QueryEscape(`{"video":"1234567890","highlights":[{"s":0,"e":5}]}`), nil)
	rec := serve(ctx, h, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("clip = %d, want 502", rec.Code)
	}
}

func TestClipMalformedPlaylist(t *testing.T) {
	segSrv := newSegmentServer(t)
	h, ctx := newClipTestHandlers(t, "#EXTINF:oops,\nseg0.ts\n", segSrv)

	req := httptest.NewRequest(http.MethodGet,
		"/clip?d="+url.QueryEscape(`{"video":"1234567890","highlights":[{"s":0,"e":5}]}`), nil)
	rec := serve(ctx, h, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("clip = %d, want 502", rec.Code)
	}
}

func TestClipRemuxFailureReleasesStream(t *testing.T) {
	segSrv := newSegmentServer(t)
	h, ctx := newClipTestHandlers(t, clipPlaylist, segSrv)
	h.remux = func(ctx context.Context, ffmpegPath string, in io.Reader, out io.Writer) error {
		// Consume a couple of bytes, then die the way ffmpeg does on bad input.
		if _, err := io.ReadFull(in, make([]byte, 2)); err != nil {
			return err
		}
		return errors.New("pipe:0: invalid data found when processing input")
	}

	req := httptest.NewRequest(http.MethodGet,
		"/clip?d="+url.QueryEscape(`{"video":"1234567890","highlights":[{"s":0,"e":5}]}`), nil)
	rec := serve(ctx, h, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("clip = %d, want 500", rec.Code)
	}

	// The segment writer goroutine must unwind once the handler returns rather
	// than sit blocked on the pipe holding segment buffers.
	deadline := time.Now().Add(2 * time.Second)
	for streamWriterRunning() {
		if time.Now().After(deadline) {
			t.Fatal("segment writer still blocked on the pipe after remux failure")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// streamWriterRunning reports whether any goroutine is still inside
// Stream.WriteTo.
func streamWriterRunning() bool {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return strings.Contains(string(buf[:n]), "clip.(*Stream).WriteTo")
}

func TestClipPlaybackTokenFailure(t *testing.T) {
	segSrv := newSegmentServer(t)
	h, ctx := newClipTestHandlers(t, clipPlaylist, segSrv)
	h.playback = &fakePlayback{err: errors.New("integrity check failed")}

	req := httptest.NewRequest(http.MethodGet,
		"/clip?d="+url.QueryEscape(`{"video":"1234567890","highlights":[{"s":0,"e":5}]}`), nil)
	rec := serve(ctx, h, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("clip = %d, want 500 for an unclassified error", rec.Code)
	}
}
