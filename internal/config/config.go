package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// TMDB holds credentials for the TMDB metadata provider.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Fanart holds credentials for the fanart.tv image provider.
type Fanart struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Library declares a named collection folder backed by one or more
// directories.
type Library struct {
	Name      string   `toml:"name"`
	Locations []string `toml:"locations"`
}

// ServerConfig is the runtime-adjustable server policy. It is read from a
// TOML file and may be reloaded while the server runs.
type ServerConfig struct {
	// FileWatcherDelay is the debounce window in seconds.
	FileWatcherDelay             int      `toml:"file_watcher_delay"`
	EnableRealtimeMonitor        bool     `toml:"enable_realtime_monitor"`
	EnableInternetProviders      bool     `toml:"enable_internet_providers"`
	InternetProviderExcludeTypes []string `toml:"internet_provider_exclude_types"`
	MaxBackdrops                 int      `toml:"max_backdrops"`
	MetadataRefreshDays          int      `toml:"metadata_refresh_days"`
	// NeedsRefreshErrorPolicy is "fail_closed" or "fail_open".
	NeedsRefreshErrorPolicy string `toml:"needs_refresh_error_policy"`
	LogLevel                string `toml:"log_level"`

	TMDB      TMDB      `toml:"tmdb"`
	Fanart    Fanart    `toml:"fanart"`
	Libraries []Library `toml:"libraries"`
}

// Load reads the configuration file at path. A missing file yields the
// defaults and exists=false.
func Load(path string) (ServerConfig, bool, error) {
	cfg := Default()

	exists := false
	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			exists = true
			decoder := toml.NewDecoder(file)
			if err := decoder.Decode(&cfg); err != nil {
				return ServerConfig{}, false, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return ServerConfig{}, false, fmt.Errorf("open config: %w", err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, exists, err
	}
	return cfg, exists, nil
}

// Save writes the configuration as TOML.
func Save(path string, cfg ServerConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *ServerConfig) normalize() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	if strings.TrimSpace(c.TMDB.Language) == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}

	if c.Fanart.APIKey == "" {
		if value, ok := os.LookupEnv("FANART_API_KEY"); ok {
			c.Fanart.APIKey = value
		}
	}
	c.Fanart.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fanart.BaseURL), "/")
	if c.Fanart.BaseURL == "" {
		c.Fanart.BaseURL = defaultFanartBaseURL
	}

	c.NeedsRefreshErrorPolicy = strings.ToLower(strings.TrimSpace(c.NeedsRefreshErrorPolicy))
	if c.NeedsRefreshErrorPolicy == "" {
		c.NeedsRefreshErrorPolicy = PolicyFailClosed
	}

	for i := range c.InternetProviderExcludeTypes {
		c.InternetProviderExcludeTypes[i] = strings.TrimSpace(c.InternetProviderExcludeTypes[i])
	}
	for i := range c.Libraries {
		c.Libraries[i].Name = strings.TrimSpace(c.Libraries[i].Name)
		for j, loc := range c.Libraries[i].Locations {
			c.Libraries[i].Locations[j] = filepath.Clean(strings.TrimSpace(loc))
		}
	}
}

// Validate ensures the configuration is usable.
func (c *ServerConfig) Validate() error {
	if c.FileWatcherDelay < 1 {
		return errors.New("file_watcher_delay must be at least 1 second")
	}
	if c.MaxBackdrops < 0 {
		return errors.New("max_backdrops must not be negative")
	}
	if c.MetadataRefreshDays < 0 {
		return errors.New("metadata_refresh_days must not be negative")
	}
	switch c.NeedsRefreshErrorPolicy {
	case PolicyFailClosed, PolicyFailOpen:
	default:
		return fmt.Errorf("needs_refresh_error_policy must be %q or %q", PolicyFailClosed, PolicyFailOpen)
	}
	for _, lib := range c.Libraries {
		if lib.Name == "" {
			return errors.New("libraries entries need a name")
		}
		if len(lib.Locations) == 0 {
			return fmt.Errorf("library %q has no locations", lib.Name)
		}
		for _, loc := range lib.Locations {
			if !filepath.IsAbs(loc) {
				return fmt.Errorf("library %q location %q must be absolute", lib.Name, loc)
			}
		}
	}
	return nil
}

// WatcherDelay returns the debounce window.
func (c ServerConfig) WatcherDelay() time.Duration {
	return time.Duration(c.FileWatcherDelay) * time.Second
}

// MetadataRefreshInterval returns how old provider data may get before a
// refresh is due, or 0 when age never triggers a refresh.
func (c ServerConfig) MetadataRefreshInterval() time.Duration {
	return time.Duration(c.MetadataRefreshDays) * 24 * time.Hour
}

// InternetExcluded reports whether internet providers are disabled for an
// item type name. Comparison is case-insensitive.
func (c ServerConfig) InternetExcluded(typeName string) bool {
	for _, t := range c.InternetProviderExcludeTypes {
		if strings.EqualFold(t, typeName) {
			return true
		}
	}
	return false
}
