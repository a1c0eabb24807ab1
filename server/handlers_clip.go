package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"autoclip/clip"
	"autoclip/telemetry"
)

// HandleClip assembles and streams a highlight clip. The request rides in the
// ?d= query parameter as JSON {video, highlights:[{s,e}...]} so the frontend
// can hand out a plain download link.
//
// Validation failures are rejected before any upstream call. Once streaming
// has begun a failure can no longer produce a clean error response; the
// connection is severed instead so the client never mistakes a truncated file
// for a complete one.
func (h *Handlers) HandleClip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	telemetry.ClipRequests.Inc()
	start := time.Now()

	req, err := clip.ParseRequest([]byte(r.URL.Query().Get("d")))
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if h.cfg.ClipTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.ClipTimeout)
		defer cancel()
	}
	log := telemetry.LoggerWithCorr(ctx)

	segments, err := h.selectSegments(ctx, req)
	if err != nil {
		telemetry.ClipsFailed.Inc()
		writeError(w, err)
		return
	}
	if len(segments) == 0 {
		writeError(w, &clip.ValidationError{Msg: "no segments match the requested highlights"})
		return
	}

	scheduler := &clip.Scheduler{
		Client:      h.SegmentClient,
		Concurrency: h.cfg.FetchConcurrency,
		Retries:     h.cfg.FetchRetries,
	}
	stream := scheduler.Fetch(ctx, segments)
	defer stream.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+req.Filename()+`"`)

	pr, pw := io.Pipe()
	// Closing the read side on exit fails any pending pw.Write, so the segment
	// writer unwinds and releases its buffers even when the remuxer dies or the
	// client disconnects mid-stream.
	defer pr.CloseWithError(context.Canceled)
	go func() {
		_, err := stream.WriteTo(pw)
		pw.CloseWithError(err)
	}()

	cw := &countingWriter{w: w}
	if err := h.remux(ctx, h.cfg.FFmpegPath, pr, cw); err != nil {
		telemetry.ClipsFailed.Inc()
		if cause := stream.Err(); cause != nil {
			err = cause
		}
		log.Error("clip assembly failed",
			slog.String("video_id", req.Video),
			slog.Int64("bytes_written", cw.n),
			slog.Any("err", err))
		if cw.n == 0 {
			writeError(w, err)
			return
		}
		// Bytes are already on the wire; abort the connection so the client
		// sees a failed download, not a short MP4.
		panic(http.ErrAbortHandler)
	}

	telemetry.ClipAssemblyDuration.Observe(time.Since(start).Seconds())
	log.Info("clip assembled",
		slog.String("video_id", req.Video),
		slog.Int("segments", len(segments)),
		slog.Int64("bytes", cw.n),
		slog.Duration("duration", time.Since(start)))
}

// selectSegments walks nauth -> master playlist -> media playlist -> segment
// selection for a validated clip request.
func (h *Handlers) selectSegments(ctx context.Context, req *clip.Request) ([]clip.Segment, error) {
	nauth, err := h.playback.PlaybackAccessToken(ctx, req.Video)
	if err != nil {
		return nil, err
	}
	mediaURL, err := h.playlists.MasterPlaylist(ctx, req.Video, nauth)
	if err != nil {
		return nil, err
	}
	playlist, base, err := h.playlists.MediaPlaylist(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	return clip.SelectSegments(playlist, base, req.Highlights, h.cfg.ClipPadding)
}

// countingWriter tracks whether any payload bytes reached the client.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
