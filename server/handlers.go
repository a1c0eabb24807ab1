// Package server exposes the HTTP API: channel browsing, chat history,
// aggregation analysis, and the clip-download endpoint, plus health, status,
// and metrics. It includes permissive CORS for development and injects
// correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"autoclip/cache"
	"autoclip/chat"
	"autoclip/clip"
	"autoclip/config"
	"autoclip/twitchapi"
	"autoclip/worker"
)

// HistoryLoader fetches a VOD's full chat history.
type HistoryLoader interface {
	Load(ctx context.Context, videoID string) (*chat.History, error)
}

// ChannelBrowser resolves channel logins and lists their archive VODs.
type ChannelBrowser interface {
	UserByLogin(ctx context.Context, login string) (*twitchapi.User, error)
	VideosForUser(ctx context.Context, userID string) ([]twitchapi.Video, error)
}

// PlaybackGateway issues playback access tokens for VODs.
type PlaybackGateway interface {
	PlaybackAccessToken(ctx context.Context, videoID string) (*twitchapi.Nauth, error)
}

// PlaylistGateway resolves the master and media playlists for a VOD.
type PlaylistGateway interface {
	MasterPlaylist(ctx context.Context, videoID string, nauth *twitchapi.Nauth) (string, error)
	MediaPlaylist(ctx context.Context, rawURL string) (string, *url.URL, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg       *config.Config
	loader    HistoryLoader
	helix     ChannelBrowser
	playback  PlaybackGateway
	playlists PlaylistGateway
	pool      *worker.Pool
	histories *cache.Cache

	// SegmentClient is the HTTP client used for CDN segment downloads.
	// Defaults to http.DefaultClient.
	SegmentClient *http.Client

	// remux is a seam for tests; production uses clip.Remux.
	remux func(ctx context.Context, ffmpegPath string, in io.Reader, out io.Writer) error
}

// NewHandlers creates a new Handlers instance with the given dependencies.
// histories is the shared response cache; chat histories are heavy to load, so
// both the chat and analysis endpoints read through it.
func NewHandlers(cfg *config.Config, loader HistoryLoader, helix ChannelBrowser,
	playback PlaybackGateway, playlists PlaylistGateway, pool *worker.Pool,
	histories *cache.Cache) *Handlers {
	return &Handlers{
		cfg:       cfg,
		loader:    loader,
		helix:     helix,
		playback:  playback,
		playlists: playlists,
		pool:      pool,
		histories: histories,
		remux:     clip.Remux,
	}
}

// history loads a VOD's chat history through the shared cache, so concurrent
// requests for one VOD trigger a single upstream load.
func (h *Handlers) history(ctx context.Context, videoID string) (*chat.History, error) {
	v, err := h.histories.GetOrFetch(ctx, "history:"+videoID, func(ctx context.Context) (any, error) {
		return h.loader.Load(ctx, videoID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*chat.History), nil
}
