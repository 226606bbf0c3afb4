// Package song provides the Song catalog entity.
package song

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateAddedLayout is the display layout used for Song.DateAdded.
const DateAddedLayout = "Jan 2, 2006"

// Song represents an immutable catalog entry.
// The JSON shape is what the liked-songs collection persists.
type Song struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	AlbumCoverURL   string  `json:"albumCover"`
	AudioURL        string  `json:"audioUrl"`
	DurationSeconds float64 `json:"duration"`
	DateAdded       string  `json:"dateAdded"`
}

// Matches reports whether the already lowercased query is a substring of
// the title, artist, or album.
func (s *Song) Matches(lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(s.Artist), lowerQuery) ||
		strings.Contains(strings.ToLower(s.Album), lowerQuery)
}

// Duration returns the song length as a time.Duration.
func (s *Song) Duration() time.Duration {
	if s.DurationSeconds <= 0 {
		return 0
	}
	return time.Duration(s.DurationSeconds * float64(time.Second))
}

// FormatDuration renders the duration as m:ss.
func (s *Song) FormatDuration() string {
	total := math.Max(s.DurationSeconds, 0)
	minutes := int(total) / 60
	seconds := int(math.Mod(total, 60))
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Record is a catalog row as stored by the backend.
type Record struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	Album         string    `json:"album"`
	AlbumCoverURL string    `json:"album_cover"`
	Duration      float64   `json:"duration"`
	AudioURL      string    `json:"audio_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// Song converts the row into a catalog Song.
func (r Record) Song() Song {
	var dateAdded string
	if !r.CreatedAt.IsZero() {
		dateAdded = r.CreatedAt.Format(DateAddedLayout)
	}
	return Song{
		ID:              r.ID,
		Title:           r.Title,
		Artist:          r.Artist,
		Album:           r.Album,
		AlbumCoverURL:   r.AlbumCoverURL,
		AudioURL:        r.AudioURL,
		DurationSeconds: math.Max(r.Duration, 0),
		DateAdded:       dateAdded,
	}
}

// Metadata is the payload for inserting a new catalog row.
// The backend assigns id and created_at.
type Metadata struct {
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	Album         string  `json:"album"`
	AlbumCoverURL string  `json:"album_cover"`
	AudioURL      string  `json:"audio_url"`
	Duration      float64 `json:"duration"`
}

// Index maps song IDs to songs for quick lookups.
type Index map[string]Song

// NewIndex builds an index over the given songs.
func NewIndex(songs []Song) Index {
	idx := make(Index, len(songs))
	for _, s := range songs {
		idx[s.ID] = s
	}
	return idx
}

// Lookup returns the song with the given ID.
func (idx Index) Lookup(id string) (Song, bool) {
	s, ok := idx[id]
	return s, ok
}
