// Command autoclip is the main entrypoint for the chat-analytics and clip API.
// It:
//   - Loads configuration and initializes structured logging.
//   - Acquires a Twitch app access token for Helix calls (best effort).
//   - Starts the aggregation worker pool and the cache janitor.
//   - Exposes the HTTP API: channel browser, chat history, analysis,
//     clip download, /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"autoclip/cache"
	"autoclip/chat"
	"autoclip/config"
	"autoclip/server"
	"autoclip/telemetry"
	"autoclip/twitchapi"
	"autoclip/worker"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("autoclip", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared response cache plus its janitor goroutine
	responseCache := cache.New(cfg.CacheTTL)
	go responseCache.StartCleanup(ctx, time.Minute)

	// Twitch clients. The app token source is used for Helix; GQL and the
	// third-party emote APIs are unauthenticated.
	tokenSource := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
	if err := cfg.ValidateHelixReady(); err != nil {
		slog.Warn("helix credentials missing, channel browser disabled", slog.Any("err", err))
	} else {
		// Best-effort early fetch so a bad secret surfaces at startup.
		ctx2, cancel := context.WithTimeout(ctx, 8*time.Second)
		if tok, err := tokenSource.Get(ctx2); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			masked := "***" + tok[len(tok)-6:]
			slog.Info("twitch app token acquired", slog.String("tail", masked))
		}
		cancel()
	}

	helix := &twitchapi.HelixClient{
		AppTokenSource: tokenSource,
		ClientID:       cfg.TwitchClientID,
		Cache:          responseCache,
	}
	gql := &twitchapi.GQLClient{Cache: responseCache}
	emotes := &twitchapi.EmoteClient{Cache: responseCache}
	cdn := &twitchapi.CDNClient{}

	loader := &chat.Loader{GQL: gql, Emotes: emotes, Parallelism: cfg.ChatParallelism}
	pool := worker.NewPool(ctx, cfg.WorkerCount)

	handlers := server.NewHandlers(cfg, loader, helix, gql, cdn, pool, responseCache)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	pool.Wait()
}
