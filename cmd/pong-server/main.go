package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcfg "github.com/arenalab/pong-arena/internal/config"
	"github.com/arenalab/pong-arena/internal/engine"
	"github.com/arenalab/pong-arena/internal/lobby"
	"github.com/arenalab/pong-arena/internal/match"
	"github.com/arenalab/pong-arena/internal/obslog"
	"github.com/arenalab/pong-arena/internal/stats"
	"github.com/arenalab/pong-arena/internal/statsync"
	"github.com/arenalab/pong-arena/internal/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	presets, err := engine.LoadPresets(cfg.PresetOverrideDir)
	if err != nil {
		obslog.L().Fatal("presets_load_error", zap.Error(err))
	}
	if err := presets.SetWinScore(cfg.DefaultPreset, cfg.WinScore); err != nil {
		obslog.L().Fatal("presets_win_score_error", zap.String("preset", cfg.DefaultPreset), zap.Error(err))
	}

	// durable repository: Postgres when configured, in-memory otherwise
	var repo stats.Repository
	if cfg.DatabaseURL != "" {
		pg, err := stats.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("postgres_init_error", zap.Error(err))
		}
		repo = pg
	} else {
		obslog.L().Warn("no DATABASE_URL set, results are kept in memory only")
		repo = stats.NewMemRepo()
	}
	defer repo.Close()

	liveStore, err := match.NewStore(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis_init_error", zap.Error(err))
	}
	defer liveStore.Close()

	addr, pass, db, err := match.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis_url_error", zap.Error(err))
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
	defer rdb.Close()

	hub := ws.NewHub()
	bc := match.Fanout{hub}

	matches := match.NewManager(presets, nil, cfg.MaxConcurrentMatches, time.Duration(cfg.ReconnectGraceSec)*time.Second)
	matches.AttachStore(liveStore)
	matches.AttachRecorder(stats.NewRecorder(repo))

	// optional platform sync
	var feed *statsync.WebSocket
	if cfg.PlatformBaseURL != "" {
		headers := func() map[string]string {
			h := map[string]string{}
			if cfg.PlatformToken != "" {
				h["X-Platform-Token"] = cfg.PlatformToken
			}
			return h
		}
		client := statsync.NewClient(cfg.PlatformBaseURL, statsync.WithHeaderProvider(headers))
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			obslog.L().Warn("platform_unreachable", zap.Error(err))
		}
		cancel()

		reporter := statsync.NewReporter(client, matches)
		bc = append(bc, reporter)

		if cfg.PlatformWSURL != "" {
			feed = statsync.NewWebSocket(cfg.PlatformWSURL, 5, time.Second)
			feed.SetHeaderProvider(headers)
			reporter.AttachFeed(feed)
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := feed.Connect(cctx); err != nil {
				obslog.L().Warn("platform_feed_connect_error", zap.Error(err))
			}
			cancel()
		}
	}
	matches.SetBroadcaster(bc)

	lobbies := lobby.NewManager(rdb, matches)
	lobbies.AttachLiveStore(liveStore)

	server := ws.NewServer(hub, matches, lobbies, repo, presets, cfg.DefaultPreset,
		ws.WithAIMatches(cfg.AIDefaultLevel, cfg.AllowAIMatches),
		ws.WithListLimit(cfg.LeaderboardLimit),
	)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	obslog.L().Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	matches.Shutdown()
	if feed != nil {
		_ = feed.Close(shutdownCtx)
	}
}
