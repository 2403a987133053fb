package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// ErrInvalidPort is returned when the listen port is outside 1..65535
	ErrInvalidPort = errors.New("invalid port")
	// ErrMissingAPIKey is returned when secure mode is requested without a key
	ErrMissingAPIKey = errors.New("secure mode requires an api key")
	// ErrInvalidFrontendURL is returned when the frontend origin cannot be parsed
	ErrInvalidFrontendURL = errors.New("invalid frontend base url")
	// ErrInvalidArtSize is returned for non-positive or inconsistent thumbnail sizes
	ErrInvalidArtSize = errors.New("invalid art size")
)

// FrontendConfig controls the cached static frontend
type FrontendConfig struct {
	Enabled bool
	BaseURL string
	// Timeout bounds the whole population, root document and assets included
	Timeout time.Duration
}

// ServerConfig is supplied once per server instance and never mutated while it runs.
// Changing any field requires a stop-then-restart.
type ServerConfig struct {
	Host            string
	Port            int
	Secure          bool
	APIKey          string
	ShutdownTimeout time.Duration
	Frontend        FrontendConfig
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate rejects configurations that would start a broken server
func (c ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.Secure && c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Frontend.Enabled {
		u, err := url.Parse(c.Frontend.BaseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: %q", ErrInvalidFrontendURL, c.Frontend.BaseURL)
		}
	}
	return nil
}

// MonitorConfig controls the MPRIS event source
type MonitorConfig struct {
	Enabled bool
	// Player restricts monitoring to bus names containing this substring
	Player       string
	PollInterval time.Duration
}

// ArtConfig controls the album art thumbnail endpoint
type ArtConfig struct {
	Size         int
	MaxSize      int
	CacheEntries int
}

// AppConfig holds application configuration
type AppConfig struct {
	Server   ServerConfig
	Monitor  MonitorConfig
	Art      ArtConfig
	LogLevel string
}

// Validate checks every section of the configuration
func (c *AppConfig) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.Art.Size < 1 || c.Art.MaxSize < c.Art.Size {
		return fmt.Errorf("%w: size=%d max=%d", ErrInvalidArtSize, c.Art.Size, c.Art.MaxSize)
	}
	return nil
}

// NewAppConfig creates the application configuration from v.
// An invalid configuration prevents startup.
func NewAppConfig(logger *zap.Logger, v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		Server: ServerConfig{
			Host:            v.GetString(KeyServerHost),
			Port:            v.GetInt(KeyServerPort),
			Secure:          v.GetBool(KeyServerSecure),
			APIKey:          v.GetString(KeyServerAPIKey),
			ShutdownTimeout: v.GetDuration(KeyServerShutdownTimeout),
			Frontend: FrontendConfig{
				Enabled: v.GetBool(KeyFrontendEnabled),
				BaseURL: v.GetString(KeyFrontendBaseURL),
				Timeout: v.GetDuration(KeyFrontendTimeout),
			},
		},
		Monitor: MonitorConfig{
			Enabled:      v.GetBool(KeyMonitorEnabled),
			Player:       v.GetString(KeyMonitorPlayer),
			PollInterval: v.GetDuration(KeyMonitorPollInterval),
		},
		Art: ArtConfig{
			Size:         v.GetInt(KeyArtSize),
			MaxSize:      v.GetInt(KeyArtMaxSize),
			CacheEntries: v.GetInt(KeyArtCacheEntries),
		},
		LogLevel: v.GetString(KeyLogLevel),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("secure", cfg.Server.Secure),
		zap.String("apiKey", lo.Ternary(cfg.Server.APIKey != "", "set", "unset")),
		zap.Bool("frontend", cfg.Server.Frontend.Enabled),
		zap.String("frontendURL", cfg.Server.Frontend.BaseURL),
		zap.Bool("monitor", cfg.Monitor.Enabled),
		zap.String("player", cfg.Monitor.Player))

	return cfg, nil
}
