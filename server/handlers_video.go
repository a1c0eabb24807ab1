package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"autoclip/worker"
)

// HandleVideosDispatcher routes requests under /videos/{id}/* to sub-handlers.
func (h *Handlers) HandleVideosDispatcher(w http.ResponseWriter, r *http.Request) {
	// crude routing
	path := strings.TrimPrefix(r.URL.Path, "/videos/")
	parts := strings.Split(path, "/")
	videoID := parts[0]
	tail := ""
	if len(parts) > 1 {
		tail = strings.Join(parts[1:], "/")
	}
	switch {
	case videoID == "" || videoID == "/":
		http.NotFound(w, r)
	case tail == "chat":
		h.handleVideoChat(w, r, videoID)
	case tail == "analysis":
		h.handleVideoAnalysis(w, r, videoID)
	default:
		http.NotFound(w, r)
	}
}

// handleVideoChat returns the full chat history of a VOD. Finished VODs never
// change, so they cache for a week; anything still live caches briefly.
func (h *Handlers) handleVideoChat(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	history, err := h.history(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}
	maxAge := "900"
	if strings.EqualFold(history.Status, "recorded") { // GQL reports "RECORDED"
		maxAge = "604800"
	}
	w.Header().Set("Cache-Control", "public, max-age="+maxAge)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(history)
}

// handleVideoAnalysis aggregates a VOD's chat into bucketed series plus
// highlight intervals. ?period= sets the bucket width in seconds; ?emotes=
// filters to the given indices of the meta emote ranking.
func (h *Handlers) handleVideoAnalysis(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	period := parseFloat64Query(r, "period", 60)
	emoteIdx := parseIntListQuery(r, "emotes")

	history, err := h.history(r.Context(), videoID)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.pool.Submit(r.Context(), worker.Request{
		Video:    videoID,
		Period:   period,
		EmoteIdx: emoteIdx,
		Lines:    history.Lines,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	select {
	case res := <-results:
		if res.Stale {
			// A newer analysis request for this VOD superseded ours.
			http.Error(w, "superseded by a newer request", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"meta":       res.Meta,
			"chart":      res.Chart,
			"highlights": res.Highlights,
		})
	case <-r.Context().Done():
		writeError(w, r.Context().Err())
	}
}
