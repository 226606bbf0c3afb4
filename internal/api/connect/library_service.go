package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/osa030/punjabibox/internal/app/library"
	"github.com/osa030/punjabibox/internal/app/notification"
	"github.com/osa030/punjabibox/internal/domain/playlist"
)

// LibraryServiceName is the fully-qualified name of the LibraryService.
const LibraryServiceName = "punjabibox.v1.LibraryService"

// LibraryService procedures.
const (
	LibraryListSongsProcedure          = "/" + LibraryServiceName + "/ListSongs"
	LibrarySearchProcedure             = "/" + LibraryServiceName + "/Search"
	LibraryPlayProcedure               = "/" + LibraryServiceName + "/Play"
	LibraryPauseProcedure              = "/" + LibraryServiceName + "/Pause"
	LibraryResumeProcedure             = "/" + LibraryServiceName + "/Resume"
	LibrarySeekProcedure               = "/" + LibraryServiceName + "/Seek"
	LibraryStopProcedure               = "/" + LibraryServiceName + "/Stop"
	LibraryGetSessionProcedure         = "/" + LibraryServiceName + "/GetSession"
	LibraryToggleLikeProcedure         = "/" + LibraryServiceName + "/ToggleLike"
	LibraryListLikedProcedure          = "/" + LibraryServiceName + "/ListLiked"
	LibraryCreatePlaylistProcedure     = "/" + LibraryServiceName + "/CreatePlaylist"
	LibraryListPlaylistsProcedure      = "/" + LibraryServiceName + "/ListPlaylists"
	LibraryGetPlaylistProcedure        = "/" + LibraryServiceName + "/GetPlaylist"
	LibraryAddToPlaylistProcedure      = "/" + LibraryServiceName + "/AddToPlaylist"
	LibraryRemoveFromPlaylistProcedure = "/" + LibraryServiceName + "/RemoveFromPlaylist"
	LibraryDeletePlaylistProcedure     = "/" + LibraryServiceName + "/DeletePlaylist"
	LibraryWatchProcedure              = "/" + LibraryServiceName + "/Watch"
)

// LibraryService implements the LibraryService RPC.
type LibraryService struct {
	library *library.Service
}

// NewLibraryService creates a new LibraryService.
func NewLibraryService(lib *library.Service) *LibraryService {
	return &LibraryService{library: lib}
}

// NewLibraryServiceHandler builds an HTTP handler serving every LibraryService
// procedure, and returns the path to mount it on.
func NewLibraryServiceHandler(svc *LibraryService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(LibraryListSongsProcedure, connect.NewUnaryHandler(LibraryListSongsProcedure, svc.ListSongs, opts...))
	mux.Handle(LibrarySearchProcedure, connect.NewUnaryHandler(LibrarySearchProcedure, svc.Search, opts...))
	mux.Handle(LibraryPlayProcedure, connect.NewUnaryHandler(LibraryPlayProcedure, svc.Play, opts...))
	mux.Handle(LibraryPauseProcedure, connect.NewUnaryHandler(LibraryPauseProcedure, svc.Pause, opts...))
	mux.Handle(LibraryResumeProcedure, connect.NewUnaryHandler(LibraryResumeProcedure, svc.Resume, opts...))
	mux.Handle(LibrarySeekProcedure, connect.NewUnaryHandler(LibrarySeekProcedure, svc.Seek, opts...))
	mux.Handle(LibraryStopProcedure, connect.NewUnaryHandler(LibraryStopProcedure, svc.Stop, opts...))
	mux.Handle(LibraryGetSessionProcedure, connect.NewUnaryHandler(LibraryGetSessionProcedure, svc.GetSession, opts...))
	mux.Handle(LibraryToggleLikeProcedure, connect.NewUnaryHandler(LibraryToggleLikeProcedure, svc.ToggleLike, opts...))
	mux.Handle(LibraryListLikedProcedure, connect.NewUnaryHandler(LibraryListLikedProcedure, svc.ListLiked, opts...))
	mux.Handle(LibraryCreatePlaylistProcedure, connect.NewUnaryHandler(LibraryCreatePlaylistProcedure, svc.CreatePlaylist, opts...))
	mux.Handle(LibraryListPlaylistsProcedure, connect.NewUnaryHandler(LibraryListPlaylistsProcedure, svc.ListPlaylists, opts...))
	mux.Handle(LibraryGetPlaylistProcedure, connect.NewUnaryHandler(LibraryGetPlaylistProcedure, svc.GetPlaylist, opts...))
	mux.Handle(LibraryAddToPlaylistProcedure, connect.NewUnaryHandler(LibraryAddToPlaylistProcedure, svc.AddToPlaylist, opts...))
	mux.Handle(LibraryRemoveFromPlaylistProcedure, connect.NewUnaryHandler(LibraryRemoveFromPlaylistProcedure, svc.RemoveFromPlaylist, opts...))
	mux.Handle(LibraryDeletePlaylistProcedure, connect.NewUnaryHandler(LibraryDeletePlaylistProcedure, svc.DeletePlaylist, opts...))
	mux.Handle(LibraryWatchProcedure, connect.NewServerStreamHandler(LibraryWatchProcedure, svc.Watch, opts...))
	return "/" + LibraryServiceName + "/", mux
}

// ListSongs returns the catalog and its load status.
func (s *LibraryService) ListSongs(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ListSongsResponse], error) {
	return connect.NewResponse(&ListSongsResponse{
		Status: toCatalogStatus(s.library.CatalogStatus()),
		Songs:  nonNil(s.library.Songs()),
	}), nil
}

// Search evaluates a query, or submits it to the debouncer.
func (s *LibraryService) Search(
	ctx context.Context,
	req *connect.Request[SearchRequest],
) (*connect.Response[SearchResponse], error) {
	if req.Msg.Debounced {
		s.library.SubmitSearch(req.Msg.Query)
		return connect.NewResponse(&SearchResponse{Query: req.Msg.Query, Active: req.Msg.Query != "", Songs: nonNil(nil)}), nil
	}
	return connect.NewResponse(toSearchResponse(s.library.Search(req.Msg.Query))), nil
}

// Play plays a song, or toggles it when it is already current.
func (s *LibraryService) Play(
	ctx context.Context,
	req *connect.Request[SongRequest],
) (*connect.Response[SessionResponse], error) {
	session, err := s.library.Play(req.Msg.SongID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: toSession(session)}), nil
}

// Pause pauses playback.
func (s *LibraryService) Pause(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[SessionResponse], error) {
	session, err := s.library.Pause()
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: toSession(session)}), nil
}

// Resume resumes playback.
func (s *LibraryService) Resume(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[SessionResponse], error) {
	session, err := s.library.Resume()
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: toSession(session)}), nil
}

// Seek moves the playback position.
func (s *LibraryService) Seek(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[SessionResponse], error) {
	session, err := s.library.Seek(time.Duration(req.Msg.PositionMs) * time.Millisecond)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SessionResponse{Session: toSession(session)}), nil
}

// Stop clears the current song.
func (s *LibraryService) Stop(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[SessionResponse], error) {
	return connect.NewResponse(&SessionResponse{Session: toSession(s.library.Stop())}), nil
}

// GetSession returns the playback session.
func (s *LibraryService) GetSession(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[SessionResponse], error) {
	return connect.NewResponse(&SessionResponse{Session: toSession(s.library.Session())}), nil
}

// ToggleLike likes or unlikes a song.
func (s *LibraryService) ToggleLike(
	ctx context.Context,
	req *connect.Request[SongRequest],
) (*connect.Response[ToggleLikeResponse], error) {
	liked, err := s.library.ToggleLike(req.Msg.SongID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ToggleLikeResponse{SongID: req.Msg.SongID, Liked: liked}), nil
}

// ListLiked returns the liked songs.
func (s *LibraryService) ListLiked(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[LikedSongsResponse], error) {
	songs := nonNil(s.library.LikedSongs())
	return connect.NewResponse(&LikedSongsResponse{Songs: songs, Count: len(songs)}), nil
}

// CreatePlaylist creates an empty playlist.
func (s *LibraryService) CreatePlaylist(
	ctx context.Context,
	req *connect.Request[CreatePlaylistRequest],
) (*connect.Response[PlaylistResponse], error) {
	p, err := s.library.CreatePlaylist(req.Msg.Name, req.Msg.Description)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PlaylistResponse{Playlist: p}), nil
}

// ListPlaylists returns all playlists.
func (s *LibraryService) ListPlaylists(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[ListPlaylistsResponse], error) {
	playlists := s.library.Playlists()
	if playlists == nil {
		playlists = []playlist.Playlist{}
	}
	return connect.NewResponse(&ListPlaylistsResponse{Playlists: playlists}), nil
}

// GetPlaylist returns a playlist with its resolved songs.
func (s *LibraryService) GetPlaylist(
	ctx context.Context,
	req *connect.Request[PlaylistRequest],
) (*connect.Response[PlaylistResponse], error) {
	p, songs, err := s.library.Playlist(req.Msg.PlaylistID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PlaylistResponse{
		Playlist:             p,
		Songs:                nonNil(songs),
		TotalDurationSeconds: playlist.TotalDuration(songs),
	}), nil
}

// AddToPlaylist adds a song to a playlist.
func (s *LibraryService) AddToPlaylist(
	ctx context.Context,
	req *connect.Request[PlaylistSongRequest],
) (*connect.Response[PlaylistResponse], error) {
	p, err := s.library.AddToPlaylist(req.Msg.PlaylistID, req.Msg.SongID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PlaylistResponse{Playlist: p}), nil
}

// RemoveFromPlaylist removes a song from a playlist.
func (s *LibraryService) RemoveFromPlaylist(
	ctx context.Context,
	req *connect.Request[PlaylistSongRequest],
) (*connect.Response[PlaylistResponse], error) {
	p, err := s.library.RemoveFromPlaylist(req.Msg.PlaylistID, req.Msg.SongID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PlaylistResponse{Playlist: p}), nil
}

// DeletePlaylist deletes a playlist.
func (s *LibraryService) DeletePlaylist(
	ctx context.Context,
	req *connect.Request[PlaylistRequest],
) (*connect.Response[Empty], error) {
	s.library.DeletePlaylist(req.Msg.PlaylistID)
	return connect.NewResponse(&Empty{}), nil
}

// Watch streams library notifications, starting with the current state.
// The subscription is registered before the snapshot is taken, so clients
// may see changes already in the snapshot and drop them by SequenceNo.
func (s *LibraryService) Watch(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[Notification],
) error {
	notifManager := s.library.Notifications()

	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := notifManager.Subscribe(adapter)
	defer func() {
		adapter.close()
		notifManager.Unsubscribe(subscriptionID)
	}()

	// Hold the adapter until the initial state is out so broadcasts queue behind it.
	adapter.mu.Lock()
	session := toSession(s.library.Session())
	status := toCatalogStatus(s.library.CatalogStatus())
	err := adapter.stream.Send(&Notification{
		Type:       NotificationInitialState,
		SequenceNo: notifManager.NextSequenceNo(),
		Session:    &session,
		Catalog:    &status,
	})
	adapter.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.library.Done():
	}
	return nil
}

type notificationSender interface {
	Send(*Notification) error
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Broadcasts may overlap, so sends are serialized. Once closed, sends are
// dropped because the handler has returned and the stream is gone.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream notificationSender
	closed bool
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.stream.Send(toNotification(n))
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
