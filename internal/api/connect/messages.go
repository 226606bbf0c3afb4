package connect

import (
	"time"

	"github.com/osa030/punjabibox/internal/app/catalog"
	"github.com/osa030/punjabibox/internal/app/notification"
	"github.com/osa030/punjabibox/internal/app/playback"
	"github.com/osa030/punjabibox/internal/app/search"
	"github.com/osa030/punjabibox/internal/domain/playlist"
	"github.com/osa030/punjabibox/internal/domain/song"
)

// Empty is a message without fields.
type Empty struct{}

type ListSongsResponse struct {
	Status CatalogStatus `json:"status"`
	Songs  []song.Song   `json:"songs"`
}

type CatalogStatus struct {
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	Count     int       `json:"count"`
	LoadedAt  time.Time `json:"loadedAt,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
	// Debounced submits the query to the debouncer; the result arrives on Watch.
	Debounced bool `json:"debounced"`
}

type SearchResponse struct {
	Query  string      `json:"query"`
	Active bool        `json:"active"`
	Songs  []song.Song `json:"songs"`
}

type SongRequest struct {
	SongID string `json:"songId"`
}

type SeekRequest struct {
	PositionMs int64 `json:"positionMs"`
}

type TrailEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

type Session struct {
	CurrentSong *song.Song   `json:"currentSong,omitempty"`
	State       string       `json:"state"`
	IsPlaying   bool         `json:"isPlaying"`
	LastError   string       `json:"lastError,omitempty"`
	PositionMs  int64        `json:"positionMs"`
	Trail       []TrailEntry `json:"trail,omitempty"`
}

type SessionResponse struct {
	Session Session `json:"session"`
}

type ToggleLikeResponse struct {
	SongID string `json:"songId"`
	Liked  bool   `json:"liked"`
}

type LikedSongsResponse struct {
	Songs []song.Song `json:"songs"`
	Count int         `json:"count"`
}

type CreatePlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PlaylistRequest struct {
	PlaylistID string `json:"playlistId"`
}

type PlaylistSongRequest struct {
	PlaylistID string `json:"playlistId"`
	SongID     string `json:"songId"`
}

type PlaylistResponse struct {
	Playlist             playlist.Playlist `json:"playlist"`
	Songs                []song.Song       `json:"songs,omitempty"`
	TotalDurationSeconds int64             `json:"totalDurationSeconds"`
}

type ListPlaylistsResponse struct {
	Playlists []playlist.Playlist `json:"playlists"`
}

type UploadRequest struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumCover  string `json:"albumCover"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

type UploadResponse struct {
	Song song.Song `json:"song"`
}

type StorageInfoResponse struct {
	Objects   []song.StoredObject `json:"objects"`
	SongCount int                 `json:"songCount"`
}

type StatusResponse struct {
	Catalog     CatalogStatus `json:"catalog"`
	Session     Session       `json:"session"`
	Liked       int           `json:"liked"`
	Playlists   int           `json:"playlists"`
	Subscribers int           `json:"subscribers"`
}

// Notification types.
const (
	NotificationInitialState = "initial_state"
	NotificationSession      = string(notification.KindSession)
	NotificationSearch       = string(notification.KindSearch)
	NotificationCatalog      = string(notification.KindCatalog)
	NotificationCollection   = string(notification.KindCollection)
)

type Notification struct {
	Type       string          `json:"type"`
	SequenceNo uint64          `json:"sequenceNo"`
	Session    *Session        `json:"session,omitempty"`
	Search     *SearchResponse `json:"search,omitempty"`
	Catalog    *CatalogStatus  `json:"catalog,omitempty"`
	Collection string          `json:"collection,omitempty"`
}

func toCatalogStatus(s catalog.Status) CatalogStatus {
	return CatalogStatus{Available: s.Available, Error: s.Error, Count: s.Count, LoadedAt: s.LoadedAt}
}

func toSearchResponse(r search.Result) *SearchResponse {
	return &SearchResponse{Query: r.Query, Active: r.Active, Songs: nonNil(r.Songs)}
}

func toSession(s playback.Session) Session {
	out := Session{
		CurrentSong: s.CurrentSong,
		State:       s.State.String(),
		IsPlaying:   s.IsPlaying,
		LastError:   s.LastError,
		PositionMs:  s.Position.Milliseconds(),
	}
	for _, e := range s.Trail {
		out.Trail = append(out.Trail, TrailEntry{At: e.At, Message: e.Message})
	}
	return out
}

func toNotification(n *notification.Notification) *Notification {
	out := &Notification{Type: string(n.Kind), SequenceNo: n.SequenceNo, Collection: n.Collection}
	if n.Session != nil {
		s := toSession(*n.Session)
		out.Session = &s
	}
	if n.Search != nil {
		out.Search = toSearchResponse(*n.Search)
	}
	if n.Catalog != nil {
		c := toCatalogStatus(*n.Catalog)
		out.Catalog = &c
	}
	return out
}

func nonNil(songs []song.Song) []song.Song {
	if songs == nil {
		return []song.Song{}
	}
	return songs
}
