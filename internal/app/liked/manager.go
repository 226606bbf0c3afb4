// Package liked provides the liked-songs manager.
package liked

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/domain/song"
	"github.com/osa030/punjabibox/internal/infra/store"
)

// StorageKey is the collection key liked songs are persisted under.
const StorageKey = "liked-songs"

// Manager owns the set of liked songs.
// Songs are stored as full snapshots so the liked list renders without the catalog.
type Manager struct {
	songs *store.Collection[song.Song]
}

// NewManager loads the persisted liked songs from backend.
func NewManager(backend store.Backend) *Manager {
	m := &Manager{
		songs: store.NewCollection[song.Song](backend, StorageKey),
	}
	zlog.Debug().Msgf("liked: loaded %d songs", m.songs.Len())
	return m
}

// ToggleLike likes the song if it is not liked, and unlikes it otherwise.
// It returns the new liked state.
func (m *Manager) ToggleLike(s song.Song) bool {
	var liked bool
	m.songs.Update(func(items []song.Song) []song.Song {
		result := make([]song.Song, 0, len(items)+1)
		for _, item := range items {
			if item.ID != s.ID {
				result = append(result, item)
			}
		}
		if len(result) == len(items) {
			liked = true
			result = append(result, s)
		}
		return result
	})

	zlog.Debug().Msgf("liked: %s liked=%t", s.ID, liked)
	return liked
}

// IsLiked reports whether a song with the given ID is liked.
func (m *Manager) IsLiked(songID string) bool {
	for _, s := range m.songs.All() {
		if s.ID == songID {
			return true
		}
	}
	return false
}

// List returns the liked songs in the order they were liked.
func (m *Manager) List() []song.Song {
	return m.songs.All()
}

// Count returns the number of liked songs.
func (m *Manager) Count() int {
	return m.songs.Len()
}
