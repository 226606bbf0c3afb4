// Package playlist provides the Playlist domain entity.
package playlist

import (
	"slices"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// Playlist represents a user playlist kept in local storage.
// SongIDs references catalog songs by ID and may contain stale IDs.
type Playlist struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CoverURL    string   `json:"coverUrl"`
	CreatedBy   string   `json:"createdBy"`
	SongIDs     []string `json:"songs"`
	SongCount   int      `json:"songCount"`
}

// Contains reports whether the song ID is already in the playlist.
func (p Playlist) Contains(songID string) bool {
	return slices.Contains(p.SongIDs, songID)
}

// WithSong returns a copy of the playlist with songID appended.
// The playlist is returned unchanged when the song is already present.
func (p Playlist) WithSong(songID string) Playlist {
	if p.Contains(songID) {
		return p
	}
	ids := make([]string, 0, len(p.SongIDs)+1)
	ids = append(ids, p.SongIDs...)
	ids = append(ids, songID)
	p.SongIDs = ids
	p.SongCount = len(ids)
	return p
}

// WithoutSong returns a copy of the playlist with every occurrence of songID removed.
func (p Playlist) WithoutSong(songID string) Playlist {
	ids := make([]string, 0, len(p.SongIDs))
	for _, id := range p.SongIDs {
		if id != songID {
			ids = append(ids, id)
		}
	}
	p.SongIDs = ids
	p.SongCount = len(ids)
	return p
}

// Normalize repairs a record loaded from storage: duplicate IDs are dropped
// and SongCount is recomputed.
func (p Playlist) Normalize() Playlist {
	seen := make(map[string]bool, len(p.SongIDs))
	ids := make([]string, 0, len(p.SongIDs))
	for _, id := range p.SongIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	p.SongIDs = ids
	p.SongCount = len(ids)
	return p
}

// Resolve maps SongIDs to catalog songs in playlist order.
// IDs that the lookup does not know are skipped.
func (p Playlist) Resolve(lookup func(id string) (song.Song, bool)) []song.Song {
	songs := make([]song.Song, 0, len(p.SongIDs))
	for _, id := range p.SongIDs {
		if s, ok := lookup(id); ok {
			songs = append(songs, s)
		}
	}
	return songs
}

// TotalDuration returns the total duration in seconds of the resolved songs.
func TotalDuration(songs []song.Song) int64 {
	var total int64
	for _, s := range songs {
		total += int64(s.Duration().Seconds())
	}
	return total
}
