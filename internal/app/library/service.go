// Package library composes the catalog, local collections, search and
// playback into the service exposed by the jukebox daemon.
package library

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/app/catalog"
	"github.com/osa030/punjabibox/internal/app/liked"
	"github.com/osa030/punjabibox/internal/app/notification"
	"github.com/osa030/punjabibox/internal/app/playback"
	"github.com/osa030/punjabibox/internal/app/playlist"
	"github.com/osa030/punjabibox/internal/app/search"
	"github.com/osa030/punjabibox/internal/app/upload"
	domainplaylist "github.com/osa030/punjabibox/internal/domain/playlist"
	"github.com/osa030/punjabibox/internal/domain/song"
)

var (
	// ErrUnknownSong is returned when a song id is neither in the catalog nor liked.
	ErrUnknownSong = errors.New("song not found")
	// ErrUnknownPlaylist is returned when a playlist id does not exist.
	ErrUnknownPlaylist = errors.New("playlist not found")
)

// DefaultFetchTimeout bounds a catalog load.
const DefaultFetchTimeout = 15 * time.Second

// Deps are the components the service is built from.
type Deps struct {
	Source       catalog.Source
	Storage      catalog.Storage // optional
	Playlists    *playlist.Manager
	Liked        *liked.Manager
	Search       *search.Engine
	Playback     *playback.Controller
	Notification *notification.Manager
	Prober       upload.Prober
	Upload       upload.Config
	FetchTimeout time.Duration
}

// StorageInfo summarizes the audio bucket and the catalog.
type StorageInfo struct {
	Objects   []song.StoredObject
	SongCount int
}

// songCounter is implemented by sources that can count rows without a full fetch.
type songCounter interface {
	CountSongs(ctx context.Context) (int, error)
}

// Service is the jukebox library.
type Service struct {
	mu sync.RWMutex

	source       catalog.Source
	storage      catalog.Storage
	fetchTimeout time.Duration

	songs  []song.Song
	index  song.Index
	status catalog.Status

	playlists    *playlist.Manager
	liked        *liked.Manager
	search       *search.Engine
	playback     *playback.Controller
	uploads      *upload.Service
	notification *notification.Manager

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a library service. Start must be called to load the catalog
// and begin forwarding events.
func New(deps Deps) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = DefaultFetchTimeout
	}
	if deps.Notification == nil {
		deps.Notification = notification.NewManager()
	}

	s := &Service{
		source:       deps.Source,
		storage:      deps.Storage,
		fetchTimeout: deps.FetchTimeout,
		songs:        []song.Song{},
		index:        song.NewIndex(nil),
		status:       catalog.Status{Error: "catalog not loaded"},
		playlists:    deps.Playlists,
		liked:        deps.Liked,
		search:       deps.Search,
		playback:     deps.Playback,
		notification: deps.Notification,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	s.uploads = upload.NewService(deps.Upload, deps.Source, deps.Storage, s, deps.Prober)
	return s
}

// Start loads the catalog and starts the event loop. A catalog failure is
// recorded in the catalog status and does not fail Start.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.RefreshCatalog(ctx)
		go s.eventLoop()
	})
}

// Close stops the event loop and releases playback and search resources.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.startOnce.Do(func() { close(s.done) })
		<-s.done
		s.playback.Close()
		s.search.Close()
		s.notification.Close()
	})
}

// Done is closed once the service has been closed.
func (s *Service) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Notifications returns the notification manager.
func (s *Service) Notifications() *notification.Manager {
	return s.notification
}

// eventLoop forwards playback events and debounced search results to watchers.
func (s *Service) eventLoop() {
	defer close(s.done)

	events := s.playback.Events()
	results := s.search.Results()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handlePlaybackEvent(ev)
		case r, ok := <-results:
			if !ok {
				return
			}
			s.notification.Broadcast(&notification.Notification{Kind: notification.KindSearch, Search: &r})
		}
	}
}

func (s *Service) handlePlaybackEvent(ev playback.Event) {
	switch ev.Type {
	case playback.EventError:
		zlog.Warn().Msgf("playback error: %s", ev.Err)
	case playback.EventSongChanged:
		if ev.Song != nil {
			zlog.Info().Msgf("now playing: %s - %s", ev.Song.Artist, ev.Song.Title)
		}
	default:
		zlog.Debug().Msgf("playback event: type=%s state=%s", ev.Type, ev.State)
	}

	session := s.playback.Session()
	s.notification.Broadcast(&notification.Notification{Kind: notification.KindSession, Session: &session})
}

// RefreshCatalog reloads the catalog from the source. On failure the
// previous catalog is kept and the status records the error.
func (s *Service) RefreshCatalog(ctx context.Context) catalog.Status {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	songs, err := s.source.FetchCatalog(ctx)

	s.mu.Lock()
	if err != nil {
		zlog.Error().Msgf("failed to load catalog: %v", err)
		s.status = catalog.Status{Available: false, Error: err.Error(), Count: len(s.songs), LoadedAt: s.status.LoadedAt}
	} else {
		s.setCatalogLocked(songs)
		s.status = catalog.Status{Available: true, Count: len(songs), LoadedAt: time.Now()}
		zlog.Info().Msgf("catalog loaded: %d songs", len(songs))
	}
	status := s.status
	s.mu.Unlock()

	s.notification.Broadcast(&notification.Notification{Kind: notification.KindCatalog, Catalog: &status})
	return status
}

// Must be called with lock held.
func (s *Service) setCatalogLocked(songs []song.Song) {
	s.songs = make([]song.Song, len(songs))
	copy(s.songs, songs)
	s.index = song.NewIndex(s.songs)
	s.search.SetCatalog(s.songs)
}

// CatalogStatus returns the outcome of the latest catalog load.
func (s *Service) CatalogStatus() catalog.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Songs returns the catalog, newest first.
func (s *Service) Songs() []song.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]song.Song, len(s.songs))
	copy(out, s.songs)
	return out
}

// Song looks up a catalog song.
func (s *Service) Song(id string) (song.Song, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Lookup(id)
}

// resolve finds a song in the catalog, falling back to liked snapshots.
func (s *Service) resolve(id string) (song.Song, error) {
	if sg, ok := s.Song(id); ok {
		return sg, nil
	}
	for _, sg := range s.liked.List() {
		if sg.ID == id {
			return sg, nil
		}
	}
	return song.Song{}, errors.Wrapf(ErrUnknownSong, "id %s", id)
}

// Search evaluates query immediately.
func (s *Service) Search(query string) search.Result {
	return s.search.Search(query)
}

// SubmitSearch schedules a debounced search. The result is delivered to watchers.
func (s *Service) SubmitSearch(query string) {
	s.search.Submit(query)
}

// Play plays the song, or toggles it when it is already current.
func (s *Service) Play(songID string) (playback.Session, error) {
	sg, err := s.resolve(songID)
	if err != nil {
		return playback.Session{}, err
	}
	s.playback.Play(sg)
	return s.playback.Session(), nil
}

// Pause pauses playback.
func (s *Service) Pause() (playback.Session, error) {
	err := s.playback.Pause()
	return s.playback.Session(), err
}

// Resume resumes playback of the current song.
func (s *Service) Resume() (playback.Session, error) {
	err := s.playback.Resume()
	return s.playback.Session(), err
}

// Seek moves the playback position.
func (s *Service) Seek(position time.Duration) (playback.Session, error) {
	err := s.playback.Seek(position)
	return s.playback.Session(), err
}

// Stop clears the current song.
func (s *Service) Stop() playback.Session {
	s.playback.Stop()
	return s.playback.Session()
}

// Session returns the playback session.
func (s *Service) Session() playback.Session {
	return s.playback.Session()
}

// ToggleLike likes or unlikes a song and reports whether it is now liked.
func (s *Service) ToggleLike(songID string) (bool, error) {
	sg, err := s.resolve(songID)
	if err != nil {
		return false, err
	}
	likedNow := s.liked.ToggleLike(sg)
	s.notifyCollection(notification.CollectionLiked)
	return likedNow, nil
}

// IsLiked reports whether a song is liked.
func (s *Service) IsLiked(songID string) bool {
	return s.liked.IsLiked(songID)
}

// LikedCount returns the number of liked songs.
func (s *Service) LikedCount() int {
	return s.liked.Count()
}

// LikedSongs returns the liked song snapshots.
func (s *Service) LikedSongs() []song.Song {
	return s.liked.List()
}

// CreatePlaylist creates an empty playlist.
func (s *Service) CreatePlaylist(name, description string) (domainplaylist.Playlist, error) {
	p, err := s.playlists.CreatePlaylist(name, description)
	if err != nil {
		return domainplaylist.Playlist{}, err
	}
	s.notifyCollection(notification.CollectionPlaylists)
	return p, nil
}

// AddToPlaylist adds a song to a playlist. Adding a song twice is a no-op.
func (s *Service) AddToPlaylist(playlistID, songID string) (domainplaylist.Playlist, error) {
	if _, ok := s.playlists.Get(playlistID); !ok {
		return domainplaylist.Playlist{}, errors.Wrapf(ErrUnknownPlaylist, "id %s", playlistID)
	}
	sg, err := s.resolve(songID)
	if err != nil {
		return domainplaylist.Playlist{}, err
	}
	s.playlists.AddSong(playlistID, sg)
	s.notifyCollection(notification.CollectionPlaylists)
	p, _ := s.playlists.Get(playlistID)
	return p, nil
}

// RemoveFromPlaylist removes a song from a playlist. Removing a non-member is a no-op.
func (s *Service) RemoveFromPlaylist(playlistID, songID string) (domainplaylist.Playlist, error) {
	if _, ok := s.playlists.Get(playlistID); !ok {
		return domainplaylist.Playlist{}, errors.Wrapf(ErrUnknownPlaylist, "id %s", playlistID)
	}
	s.playlists.RemoveSong(playlistID, songID)
	s.notifyCollection(notification.CollectionPlaylists)
	p, _ := s.playlists.Get(playlistID)
	return p, nil
}

// DeletePlaylist removes a playlist. Deleting an unknown playlist is a no-op.
func (s *Service) DeletePlaylist(playlistID string) {
	s.playlists.DeletePlaylist(playlistID)
	s.notifyCollection(notification.CollectionPlaylists)
}

// Playlists returns all playlists.
func (s *Service) Playlists() []domainplaylist.Playlist {
	return s.playlists.List()
}

// Playlist returns a playlist with its songs resolved against the catalog.
// Ids no longer in the catalog are dropped from the resolved songs.
func (s *Service) Playlist(playlistID string) (domainplaylist.Playlist, []song.Song, error) {
	p, ok := s.playlists.Get(playlistID)
	if !ok {
		return domainplaylist.Playlist{}, nil, errors.Wrapf(ErrUnknownPlaylist, "id %s", playlistID)
	}
	songs, _ := s.playlists.Songs(playlistID, s.Song)
	return p, songs, nil
}

// Upload stores a new song and adds it to the top of the catalog.
func (s *Service) Upload(ctx context.Context, req upload.Request) (song.Song, error) {
	created, err := s.uploads.Upload(ctx, req)
	if err != nil {
		return song.Song{}, err
	}

	s.mu.Lock()
	s.setCatalogLocked(append([]song.Song{created}, s.songs...))
	s.status.Count = len(s.songs)
	status := s.status
	s.mu.Unlock()

	s.notification.Broadcast(&notification.Notification{Kind: notification.KindCatalog, Catalog: &status})
	return created, nil
}

// StorageInfo lists the audio bucket and counts catalog songs.
func (s *Service) StorageInfo(ctx context.Context) (StorageInfo, error) {
	if s.storage == nil {
		return StorageInfo{}, catalog.ErrNoStorage
	}
	objects, err := s.storage.ListObjects(ctx)
	if err != nil {
		return StorageInfo{}, err
	}

	count := len(s.Songs())
	if c, ok := s.source.(songCounter); ok {
		n, err := c.CountSongs(ctx)
		if err != nil {
			zlog.Warn().Msgf("failed to count songs: %v", err)
		} else {
			count = n
		}
	}
	return StorageInfo{Objects: objects, SongCount: count}, nil
}

func (s *Service) notifyCollection(name string) {
	s.notification.Broadcast(&notification.Notification{Kind: notification.KindCollection, Collection: name})
}
