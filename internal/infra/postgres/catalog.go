// Package postgres provides a catalog source reading the songs table directly.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/domain/song"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// Config holds database configuration.
type Config struct {
	DatabaseURL     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	Migrate         bool
}

// Catalog reads and writes the songs table.
type Catalog struct {
	pool  *pgxpool.Pool
	sqlDB *sql.DB
}

// songRow mirrors the songs table.
type songRow struct {
	ID         string    `db:"id"`
	Title      string    `db:"title"`
	Artist     string    `db:"artist"`
	Album      string    `db:"album"`
	AlbumCover string    `db:"album_cover"`
	Duration   float64   `db:"duration"`
	AudioURL   string    `db:"audio_url"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r songRow) record() song.Record {
	return song.Record{
		ID:            r.ID,
		Title:         r.Title,
		Artist:        r.Artist,
		Album:         r.Album,
		AlbumCoverURL: r.AlbumCover,
		Duration:      r.Duration,
		AudioURL:      r.AudioURL,
		CreatedAt:     r.CreatedAt,
	}
}

const selectColumns = `id::text, title, artist, album, album_cover, duration, audio_url, created_at`

// Connect opens a connection pool and, when configured, applies migrations.
func Connect(ctx context.Context, cfg Config) (*Catalog, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse database URL")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	c := &Catalog{
		pool:  pool,
		sqlDB: stdlib.OpenDBFromPool(pool),
	}
	zlog.Info().Msg("postgres: connection established")

	if cfg.Migrate {
		if err := c.Migrate(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Migrate applies pending migrations.
func (c *Catalog) Migrate(ctx context.Context) error {
	provider, err := newMigrationProvider(c.sqlDB)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}
	for _, r := range results {
		zlog.Info().Msgf("postgres: applied migration %s in %s", r.Source.Path, r.Duration)
	}
	return nil
}

func newMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrationFS())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migration provider")
	}
	return provider, nil
}

func migrationFS() fs.FS {
	sub, err := fs.Sub(embedMigrations, migrationsDir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Close closes the connection pool.
func (c *Catalog) Close() {
	if c.sqlDB != nil {
		_ = c.sqlDB.Close()
	}
	if c.pool != nil {
		c.pool.Close()
		zlog.Info().Msg("postgres: connection closed")
	}
}

// FetchCatalog returns all songs, newest first.
func (c *Catalog) FetchCatalog(ctx context.Context) ([]song.Song, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+selectColumns+` FROM songs ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query songs")
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[songRow])
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan songs")
	}

	songs := make([]song.Song, 0, len(records))
	for _, r := range records {
		songs = append(songs, r.record().Song())
	}
	return songs, nil
}

// InsertSong inserts a row and returns it as stored.
func (c *Catalog) InsertSong(ctx context.Context, m song.Metadata) (song.Song, error) {
	rows, err := c.pool.Query(ctx,
		`INSERT INTO songs (title, artist, album, album_cover, duration, audio_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+selectColumns,
		m.Title, m.Artist, m.Album, m.AlbumCoverURL, m.Duration, m.AudioURL)
	if err != nil {
		return song.Song{}, errors.Wrap(err, "failed to insert song")
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[songRow])
	if err != nil {
		return song.Song{}, errors.Wrap(err, "failed to read inserted song")
	}

	zlog.Info().Msgf("postgres: inserted song %s (%s)", row.Title, row.ID)
	return row.record().Song(), nil
}

// CountSongs returns the number of rows in the songs table.
func (c *Catalog) CountSongs(ctx context.Context) (int, error) {
	var n int
	if err := c.pool.QueryRow(ctx, `SELECT count(*) FROM songs`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count songs")
	}
	return n, nil
}
