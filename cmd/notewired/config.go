package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/notewire/notewire/transport"
)

// notewired.toml key mapping to runtime settings.
type fileConfig struct {
	ListenAddr       string `toml:"listen_addr"`
	BasePath         string `toml:"base_path"`
	RequestTimeoutMs int    `toml:"request_timeout_ms"`
	PeerURL          string `toml:"peer_url"`
	ImageAPIURL      string `toml:"image_api_url"`
	ImageAPIKey      string `toml:"image_api_key"`
	LLMURL           string `toml:"llm_url"`
	LogLevel         string `toml:"log_level"`
}

type appConfig struct {
	ListenAddr     string
	BasePath       string
	RequestTimeout time.Duration
	PeerURL        string
	ImageAPIURL    string
	ImageAPIKey    string
	LLMURL         string
	LogLevel       slog.Level
}

func defaultConfig() appConfig {
	return appConfig{
		ListenAddr:     "127.0.0.1:27123",
		BasePath:       "/mcp",
		RequestTimeout: transport.DefaultRequestTimeout,
		LogLevel:       slog.LevelInfo,
	}
}

// loadConfig overlays the TOML file, when given, onto the defaults.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("base_path") {
		bp := strings.TrimSpace(raw.BasePath)
		if !strings.HasPrefix(bp, "/") {
			return appConfig{}, fmt.Errorf("load config: base_path %q must start with /", bp)
		}
		cfg.BasePath = bp
	}
	if meta.IsDefined("request_timeout_ms") {
		if raw.RequestTimeoutMs <= 0 {
			return appConfig{}, fmt.Errorf("load config: request_timeout_ms must be positive, got %d", raw.RequestTimeoutMs)
		}
		cfg.RequestTimeout = time.Duration(raw.RequestTimeoutMs) * time.Millisecond
	}
	if meta.IsDefined("peer_url") {
		cfg.PeerURL = strings.TrimSpace(raw.PeerURL)
	}
	if meta.IsDefined("image_api_url") {
		cfg.ImageAPIURL = strings.TrimSpace(raw.ImageAPIURL)
	}
	if meta.IsDefined("image_api_key") {
		cfg.ImageAPIKey = strings.TrimSpace(raw.ImageAPIKey)
	}
	if meta.IsDefined("llm_url") {
		cfg.LLMURL = strings.TrimSpace(raw.LLMURL)
	}
	if meta.IsDefined("log_level") {
		level, err := parseLogLevel(raw.LogLevel)
		if err != nil {
			return appConfig{}, fmt.Errorf("load config: %w", err)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
