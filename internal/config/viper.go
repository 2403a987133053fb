package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	appName = "eddy"

	KeyServerHost            = "server.host"
	KeyServerPort            = "server.port"
	KeyServerSecure          = "server.secure"
	KeyServerAPIKey          = "server.api_key"
	KeyServerShutdownTimeout = "server.shutdown_timeout"
	KeyFrontendEnabled       = "frontend.enabled"
	KeyFrontendBaseURL       = "frontend.base_url"
	KeyFrontendTimeout       = "frontend.timeout"
	KeyMonitorEnabled        = "monitor.enabled"
	KeyMonitorPlayer         = "monitor.player"
	KeyMonitorPollInterval   = "monitor.poll_interval"
	KeyArtSize               = "art.size"
	KeyArtMaxSize            = "art.max_size"
	KeyArtCacheEntries       = "art.cache_entries"
	KeyLogLevel              = "log.level"
)

// EnvKeyReplacer maps configuration keys to environment variable names (server.port -> EDDY_SERVER_PORT)
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Defaults holds the factory value of every configuration key
var Defaults = map[string]any{
	KeyServerHost:            "",
	KeyServerPort:            3000,
	KeyServerSecure:          false,
	KeyServerAPIKey:          "",
	KeyServerShutdownTimeout: 3 * time.Second,
	KeyFrontendEnabled:       true,
	KeyFrontendBaseURL:       "https://eddyviewer.pages.dev",
	KeyFrontendTimeout:       10 * time.Second,
	KeyMonitorEnabled:        true,
	KeyMonitorPlayer:         "",
	KeyMonitorPollInterval:   5 * time.Second,
	KeyArtSize:               640,
	KeyArtMaxSize:            1280,
	KeyArtCacheEntries:       32,
	KeyLogLevel:              "info",
}

// NewViper builds a viper instance with defaults, environment bindings and
// the default config search path, reading files through fs.
func NewViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)

	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	for key, value := range Defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(appName)
	if dir := configDir(); dir != "" {
		v.AddConfigPath(dir)
	}
	return v
}

// ReadConfigFile loads path, or the first eddy.{toml,yaml,json} on the search path when path is empty.
// A missing file on the search path is not an error; a missing explicit path is.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName)
}
