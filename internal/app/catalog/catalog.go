// Package catalog defines where catalog songs come from and where uploaded
// audio is stored.
package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/punjabibox/internal/domain/song"
)

var (
	// ErrReadOnly is returned when inserting into a source that cannot accept new songs.
	ErrReadOnly = errors.New("catalog source is read-only")
	// ErrNoStorage is returned when no audio storage is configured.
	ErrNoStorage = errors.New("audio storage is not configured")
)

// Status describes the outcome of the latest catalog load.
type Status struct {
	Available bool
	Error     string
	Count     int
	LoadedAt  time.Time
}

// Source provides catalog songs, newest first.
type Source interface {
	FetchCatalog(ctx context.Context) ([]song.Song, error)
	InsertSong(ctx context.Context, m song.Metadata) (song.Song, error)
}

// Storage holds uploaded audio files.
type Storage interface {
	UploadAudio(ctx context.Context, name, contentType string, data []byte) (string, error)
	PublicURL(path string) string
	ListObjects(ctx context.Context) ([]song.StoredObject, error)
}

// Fetcher is the read half of a Source.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]song.Song, error)
}

// ReadOnly wraps a Fetcher into a Source whose inserts fail with ErrReadOnly.
func ReadOnly(f Fetcher) Source {
	return readOnly{f}
}

type readOnly struct {
	Fetcher
}

func (readOnly) InsertSong(context.Context, song.Metadata) (song.Song, error) {
	return song.Song{}, ErrReadOnly
}
