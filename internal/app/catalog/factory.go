package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/infra/config"
	"github.com/osa030/punjabibox/internal/infra/postgres"
	"github.com/osa030/punjabibox/internal/infra/spotify"
	"github.com/osa030/punjabibox/internal/infra/supabase"
)

// PostgresSettings configures the postgres catalog source.
type PostgresSettings struct {
	DatabaseURL        string `mapstructure:"database_url" validate:"required"`
	MaxConns           int32  `mapstructure:"max_conns" default:"4" validate:"gte=1,lte=100"`
	MinConns           int32  `mapstructure:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetimeSec int    `mapstructure:"max_conn_lifetime_sec" default:"3600" validate:"gte=0"`
	Migrate            bool   `mapstructure:"migrate"`
}

// SpotifySettings configures the spotify catalog source.
type SpotifySettings struct {
	ClientID     string   `mapstructure:"client_id" validate:"required"`
	ClientSecret string   `mapstructure:"client_secret" validate:"required"`
	RefreshToken string   `mapstructure:"refresh_token" validate:"required"`
	Market       string   `mapstructure:"market" default:"IN" validate:"len=2"`
	Playlists    []string `mapstructure:"playlists" validate:"required,min=1,dive,required"`
}

// Closer releases resources held by a source.
type Closer func()

// NewSourceFromConfig creates the catalog source selected by cfg.Catalog.Source.
func NewSourceFromConfig(ctx context.Context, cfg *config.Config) (Source, Closer, error) {
	nop := func() {}
	zlog.Debug().Msgf("creating catalog source: type=%s", cfg.Catalog.Source)

	switch cfg.Catalog.Source {
	case config.SourceSupabase:
		client, err := newSupabaseClient(cfg.Supabase)
		if err != nil {
			return nil, nil, err
		}
		zlog.Info().Msgf("catalog source: supabase table=%s", cfg.Supabase.Table)
		return client, nop, nil

	case config.SourcePostgres:
		var s PostgresSettings
		if err := decodeSettings(cfg.Catalog.Settings, &s); err != nil {
			return nil, nil, errors.Wrap(err, "invalid postgres settings")
		}
		db, err := postgres.Connect(ctx, postgres.Config{
			DatabaseURL:     s.DatabaseURL,
			MaxConns:        s.MaxConns,
			MinConns:        s.MinConns,
			MaxConnLifetime: time.Duration(s.MaxConnLifetimeSec) * time.Second,
			Migrate:         s.Migrate,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect catalog database")
		}
		zlog.Info().Msg("catalog source: postgres")
		return db, db.Close, nil

	case config.SourceSpotify:
		var s SpotifySettings
		if err := decodeSettings(cfg.Catalog.Settings, &s); err != nil {
			return nil, nil, errors.Wrap(err, "invalid spotify settings")
		}
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			RefreshToken: s.RefreshToken,
			Market:       s.Market,
			Playlists:    s.Playlists,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to create spotify client")
		}
		zlog.Info().Msgf("catalog source: spotify playlists=%d (read-only)", len(s.Playlists))
		return ReadOnly(client), nop, nil

	default:
		return nil, nil, errors.Newf("unsupported catalog source: %s", cfg.Catalog.Source)
	}
}

// NewStorageFromConfig returns the Supabase bucket storage, or nil when no
// Supabase project is configured.
func NewStorageFromConfig(cfg *config.Config) (Storage, error) {
	if !cfg.Supabase.Enabled() {
		zlog.Info().Msg("audio storage disabled: supabase is not configured")
		return nil, nil
	}
	client, err := newSupabaseClient(cfg.Supabase)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newSupabaseClient(cfg config.SupabaseConfig) (*supabase.Client, error) {
	client, err := supabase.New(supabase.Config{
		URL:        cfg.URL,
		AnonKey:    cfg.AnonKey,
		Table:      cfg.Table,
		Bucket:     cfg.Bucket,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		MaxRetries: uint64(cfg.MaxRetries),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create supabase client")
	}
	return client, nil
}

func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
