package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"autoclip/twitchapi"
)

// HandleChannelsDispatcher routes requests under /channels/{login}.
func (h *Handlers) HandleChannelsDispatcher(w http.ResponseWriter, r *http.Request) {
	// crude routing
	login := strings.TrimPrefix(r.URL.Path, "/channels/")
	if login == "" || strings.Contains(login, "/") {
		http.NotFound(w, r)
		return
	}
	h.handleChannelDetail(w, r, login)
}

// handleChannelDetail resolves a channel login and lists its archive VODs.
func (h *Handlers) handleChannelDetail(w http.ResponseWriter, r *http.Request, login string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, err := h.helix.UserByLogin(r.Context(), strings.ToLower(login))
	if err != nil {
		writeError(w, err)
		return
	}
	videos, err := h.helix.VideosForUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if videos == nil {
		videos = []twitchapi.Video{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user":   user,
		"videos": videos,
	})
}
