package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	// External platform backend (optional). When unset the statsync client
	// is disabled and results stay local.
	PlatformBaseURL string
	PlatformWSURL   string
	PlatformToken   string

	MaxConcurrentMatches int
	WinScore             int
	DefaultPreset        string
	PresetOverrideDir    string

	// Seconds a disconnected player may rejoin before the match is forfeited.
	ReconnectGraceSec int

	AIDefaultLevel int
	AllowAIMatches bool

	LeaderboardLimit int
}

func Load() (*AppConfig, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:           ":8080",
		MaxConcurrentMatches: 200,
		WinScore:             5,
		DefaultPreset:        "classic",
		ReconnectGraceSec:    30,
		AIDefaultLevel:       3,
		AllowAIMatches:       true,
		LeaderboardLimit:     20,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.PlatformBaseURL = strings.TrimSpace(os.Getenv("PLATFORM_BASE_URL"))
	cfg.PlatformWSURL = strings.TrimSpace(os.Getenv("PLATFORM_WS_URL"))
	cfg.PlatformToken = strings.TrimSpace(os.Getenv("PLATFORM_TOKEN"))

	if v := strings.TrimSpace(os.Getenv("MAX_CONCURRENT_MATCHES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentMatches = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIN_SCORE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WinScore = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GAME_PRESET")); v != "" {
		cfg.DefaultPreset = v
	}
	cfg.PresetOverrideDir = strings.TrimSpace(os.Getenv("GAME_PRESET_DIR"))

	if v := strings.TrimSpace(os.Getenv("RECONNECT_GRACE_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReconnectGraceSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AI_DEFAULT_LEVEL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 5 {
			cfg.AIDefaultLevel = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ALLOW_AI_MATCHES")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAIMatches = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LeaderboardLimit = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PlatformWSURL != "" && cfg.PlatformBaseURL == "" {
		return nil, errors.New("PLATFORM_BASE_URL is required when PLATFORM_WS_URL is set")
	}

	return cfg, nil
}
