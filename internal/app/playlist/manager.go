// Package playlist provides the user playlist manager.
package playlist

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/domain/playlist"
	"github.com/osa030/punjabibox/internal/domain/song"
	"github.com/osa030/punjabibox/internal/infra/store"
)

// StorageKey is the collection key playlists are persisted under.
const StorageKey = "user-playlists"

// Defaults applied to new playlists.
const (
	DefaultCoverURL  = "https://images.pexels.com/photos/1190297/pexels-photo-1190297.jpeg"
	DefaultCreatedBy = "User"
)

// Errors
var (
	ErrEmptyName = errors.New("playlist name must not be empty")
)

// Config holds manager configuration.
type Config struct {
	DefaultCoverURL string
	CreatedBy       string
}

// Manager owns the user's playlists.
// Every mutation is persisted before it returns.
type Manager struct {
	config    Config
	playlists *store.Collection[playlist.Playlist]
	newID     func() string
}

// NewManager loads the persisted playlists from backend.
func NewManager(backend store.Backend, config Config) *Manager {
	if config.DefaultCoverURL == "" {
		config.DefaultCoverURL = DefaultCoverURL
	}
	if config.CreatedBy == "" {
		config.CreatedBy = DefaultCreatedBy
	}

	m := &Manager{
		config:    config,
		playlists: store.NewCollection[playlist.Playlist](backend, StorageKey),
		newID:     newPlaylistID,
	}

	// Hand-edited records may carry duplicate ids or a stale count.
	if needsRepair(m.playlists.All()) {
		m.playlists.Update(func(items []playlist.Playlist) []playlist.Playlist {
			for i := range items {
				items[i] = items[i].Normalize()
			}
			return items
		})
	}

	zlog.Debug().Msgf("playlist: loaded %d playlists", m.playlists.Len())
	return m
}

func needsRepair(items []playlist.Playlist) bool {
	for _, p := range items {
		n := p.Normalize()
		if n.SongCount != p.SongCount || len(n.SongIDs) != len(p.SongIDs) {
			return true
		}
	}
	return false
}

func newPlaylistID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "playlist-" + id.String()
}

// CreatePlaylist appends a new empty playlist.
// A name that is empty after trimming is rejected with ErrEmptyName and nothing is stored.
func (m *Manager) CreatePlaylist(name, description string) (playlist.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return playlist.Playlist{}, ErrEmptyName
	}

	p := playlist.Playlist{
		ID:          m.newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CoverURL:    m.config.DefaultCoverURL,
		CreatedBy:   m.config.CreatedBy,
		SongIDs:     []string{},
		SongCount:   0,
	}

	m.playlists.Update(func(items []playlist.Playlist) []playlist.Playlist {
		return append(items, p)
	})

	zlog.Info().Msgf("playlist: created %s (%s)", p.Name, p.ID)
	return p, nil
}

// AddSong appends the song to the playlist.
// Adding a song that is already present, or targeting an unknown playlist, changes nothing.
func (m *Manager) AddSong(playlistID string, s song.Song) {
	m.modify(playlistID, func(p playlist.Playlist) playlist.Playlist {
		return p.WithSong(s.ID)
	})
}

// RemoveSong removes the song ID from the playlist. Unknown IDs are ignored.
func (m *Manager) RemoveSong(playlistID, songID string) {
	m.modify(playlistID, func(p playlist.Playlist) playlist.Playlist {
		return p.WithoutSong(songID)
	})
}

// DeletePlaylist removes the playlist. Unknown IDs are ignored.
func (m *Manager) DeletePlaylist(playlistID string) {
	m.playlists.Update(func(items []playlist.Playlist) []playlist.Playlist {
		result := make([]playlist.Playlist, 0, len(items))
		for _, p := range items {
			if p.ID != playlistID {
				result = append(result, p)
			}
		}
		return result
	})
}

func (m *Manager) modify(playlistID string, fn func(playlist.Playlist) playlist.Playlist) {
	m.playlists.Update(func(items []playlist.Playlist) []playlist.Playlist {
		for i := range items {
			if items[i].ID == playlistID {
				items[i] = fn(items[i])
				break
			}
		}
		return items
	})
}

// List returns all playlists in creation order.
func (m *Manager) List() []playlist.Playlist {
	return m.playlists.All()
}

// Get returns the playlist with the given ID.
func (m *Manager) Get(playlistID string) (playlist.Playlist, bool) {
	for _, p := range m.playlists.All() {
		if p.ID == playlistID {
			return p, true
		}
	}
	return playlist.Playlist{}, false
}

// Songs resolves the playlist's songs against the catalog.
// IDs no longer present in the catalog are dropped from the result.
func (m *Manager) Songs(playlistID string, lookup func(id string) (song.Song, bool)) ([]song.Song, bool) {
	p, ok := m.Get(playlistID)
	if !ok {
		return nil, false
	}
	return p.Resolve(lookup), true
}
