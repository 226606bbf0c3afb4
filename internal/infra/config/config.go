// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Catalog source types.
const (
	SourceSupabase = "supabase"
	SourcePostgres = "postgres"
	SourceSpotify  = "spotify"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Search    SearchConfig    `yaml:"search"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Playlists PlaylistsConfig `yaml:"playlists"`
	Upload    UploadConfig    `yaml:"upload"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig represents the local API server configuration.
type ServerConfig struct {
	Addr       string      `yaml:"addr" default:"127.0.0.1:7878" validate:"required,hostname_port"`
	AdminToken string      `yaml:"admin_token" env:"JUKEBOX_ADMIN_TOKEN"`
	Hooks      HooksConfig `yaml:"hooks"`
}

// HooksConfig represents shell commands run around the server lifecycle.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// StorageConfig represents local collection storage configuration.
type StorageConfig struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file memory"`
	DataDir string `yaml:"data_dir" default:"./data" env:"JUKEBOX_DATA_DIR"`
}

// CatalogConfig represents the catalog source configuration.
// Settings are decoded by the selected source.
type CatalogConfig struct {
	Source          string         `yaml:"source" default:"supabase" validate:"oneof=supabase postgres spotify"`
	FetchTimeoutSec int            `yaml:"fetch_timeout_sec" default:"15" validate:"gte=1,lte=300"`
	Settings        map[string]any `yaml:"settings"`
}

// SupabaseConfig represents the backend project configuration.
type SupabaseConfig struct {
	URL        string `yaml:"url" env:"SUPABASE_URL" validate:"omitempty,url"`
	AnonKey    string `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	Table      string `yaml:"table" default:"songs"`
	Bucket     string `yaml:"bucket" default:"songs"`
	TimeoutSec int    `yaml:"timeout_sec" default:"30" validate:"gte=1,lte=600"`
	MaxRetries int    `yaml:"max_retries" default:"2" validate:"gte=0,lte=10"`
}

// SearchConfig represents search configuration.
type SearchConfig struct {
	DebounceMs int `yaml:"debounce_ms" default:"300" validate:"gte=0,lte=5000"`
}

// PlaybackConfig represents audio output configuration.
type PlaybackConfig struct {
	SampleRate     int `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs       int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	HTTPTimeoutSec int `yaml:"http_timeout_sec" default:"60" validate:"gte=1,lte=600"`
	TrailSize      int `yaml:"trail_size" default:"5" validate:"gte=1,lte=100"`
}

// PlaylistsConfig represents defaults for new playlists.
type PlaylistsConfig struct {
	DefaultCoverURL string `yaml:"default_cover_url" default:"https://images.pexels.com/photos/1190297/pexels-photo-1190297.jpeg" validate:"url"`
	CreatedBy       string `yaml:"created_by" default:"User"`
}

// UploadConfig represents limits applied to uploaded songs.
type UploadConfig struct {
	MaxSizeMB  int     `yaml:"max_size_mb" default:"50" validate:"gte=1,lte=500"`
	MaxMinutes float64 `yaml:"max_minutes" validate:"gte=0"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stderr"`
	File   string `yaml:"file"`
}

// secretEnv holds catalog credentials that may only be provided by the environment.
type secretEnv struct {
	DatabaseURL         string `env:"DATABASE_URL"`
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyRefreshToken string `env:"SPOTIFY_REFRESH_TOKEN"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides configuration with environment variables.
func (c *Config) overrideFromEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.Wrap(err, "failed to parse environment")
	}

	var secrets secretEnv
	if err := env.Parse(&secrets); err != nil {
		return errors.Wrap(err, "failed to parse environment")
	}

	switch c.Catalog.Source {
	case SourcePostgres:
		c.setCatalogSetting("database_url", secrets.DatabaseURL)
	case SourceSpotify:
		c.setCatalogSetting("client_id", secrets.SpotifyClientID)
		c.setCatalogSetting("client_secret", secrets.SpotifyClientSecret)
		c.setCatalogSetting("refresh_token", secrets.SpotifyRefreshToken)
	}
	return nil
}

func (c *Config) setCatalogSetting(key, value string) {
	if value == "" {
		return
	}
	if c.Catalog.Settings == nil {
		c.Catalog.Settings = make(map[string]any)
	}
	c.Catalog.Settings[key] = value
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Catalog.Source == SourceSupabase && !c.Supabase.Enabled() {
		return errors.New("supabase.url and supabase.anon_key are required for the supabase catalog source")
	}
	if c.Storage.Backend == "file" && c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required for the file backend")
	}

	return nil
}

// Enabled reports whether a Supabase project is configured.
func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.AnonKey != ""
}

// FetchTimeout returns the catalog fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Catalog.FetchTimeoutSec) * time.Second
}

// Debounce returns the search debounce period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Search.DebounceMs) * time.Millisecond
}
