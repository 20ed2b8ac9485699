package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	DownloadDir     string        `envconfig:"DOWNLOAD_DIR" default:"downloads"`
	MaxParallel     int           `envconfig:"MAX_PARALLEL" default:"4"`
	KeepFinishedFor time.Duration `envconfig:"KEEP_FINISHED_FOR" default:"24h"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"10m"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"INFO"`

	Proxy             string `envconfig:"YTDLP_PROXY"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	// Cookie jar candidates, highest priority first. Bootstrap sources fill
	// the first candidate when set.
	CookiePaths   []string `envconfig:"COOKIE_PATHS" default:"/tmp/cookies.txt,cookies.txt,/mnt/data/cookies.txt"`
	CookiesBase64 string   `envconfig:"YTDLP_COOKIES_B64"`
	CookiesRaw    string   `envconfig:"YTDLP_COOKIES"`
	CookiesURL    string   `envconfig:"COOKIES_URL"`

	Telemetry struct {
		Enabled        bool   `split_words:"true" default:"true"`
		ServiceName    string `split_words:"true" default:"fetchd"`
		ServiceVersion string `split_words:"true" default:"dev"`
		OTLPEndpoint   string `envconfig:"OTLP_ENDPOINT"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:5000"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"10m"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
