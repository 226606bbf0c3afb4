package connect

import (
	"context"
	"time"

	"connectrpc.com/connect"
)

// LibraryClient is a client for the LibraryService.
type LibraryClient struct {
	listSongs          *connect.Client[Empty, ListSongsResponse]
	search             *connect.Client[SearchRequest, SearchResponse]
	play               *connect.Client[SongRequest, SessionResponse]
	pause              *connect.Client[Empty, SessionResponse]
	resume             *connect.Client[Empty, SessionResponse]
	seek               *connect.Client[SeekRequest, SessionResponse]
	stop               *connect.Client[Empty, SessionResponse]
	getSession         *connect.Client[Empty, SessionResponse]
	toggleLike         *connect.Client[SongRequest, ToggleLikeResponse]
	listLiked          *connect.Client[Empty, LikedSongsResponse]
	createPlaylist     *connect.Client[CreatePlaylistRequest, PlaylistResponse]
	listPlaylists      *connect.Client[Empty, ListPlaylistsResponse]
	getPlaylist        *connect.Client[PlaylistRequest, PlaylistResponse]
	addToPlaylist      *connect.Client[PlaylistSongRequest, PlaylistResponse]
	removeFromPlaylist *connect.Client[PlaylistSongRequest, PlaylistResponse]
	deletePlaylist     *connect.Client[PlaylistRequest, Empty]
	watch              *connect.Client[Empty, Notification]
}

// NewLibraryClient creates a LibraryService client for the daemon at baseURL.
func NewLibraryClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LibraryClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &LibraryClient{
		listSongs:          connect.NewClient[Empty, ListSongsResponse](httpClient, baseURL+LibraryListSongsProcedure, opts...),
		search:             connect.NewClient[SearchRequest, SearchResponse](httpClient, baseURL+LibrarySearchProcedure, opts...),
		play:               connect.NewClient[SongRequest, SessionResponse](httpClient, baseURL+LibraryPlayProcedure, opts...),
		pause:              connect.NewClient[Empty, SessionResponse](httpClient, baseURL+LibraryPauseProcedure, opts...),
		resume:             connect.NewClient[Empty, SessionResponse](httpClient, baseURL+LibraryResumeProcedure, opts...),
		seek:               connect.NewClient[SeekRequest, SessionResponse](httpClient, baseURL+LibrarySeekProcedure, opts...),
		stop:               connect.NewClient[Empty, SessionResponse](httpClient, baseURL+LibraryStopProcedure, opts...),
		getSession:         connect.NewClient[Empty, SessionResponse](httpClient, baseURL+LibraryGetSessionProcedure, opts...),
		toggleLike:         connect.NewClient[SongRequest, ToggleLikeResponse](httpClient, baseURL+LibraryToggleLikeProcedure, opts...),
		listLiked:          connect.NewClient[Empty, LikedSongsResponse](httpClient, baseURL+LibraryListLikedProcedure, opts...),
		createPlaylist:     connect.NewClient[CreatePlaylistRequest, PlaylistResponse](httpClient, baseURL+LibraryCreatePlaylistProcedure, opts...),
		listPlaylists:      connect.NewClient[Empty, ListPlaylistsResponse](httpClient, baseURL+LibraryListPlaylistsProcedure, opts...),
		getPlaylist:        connect.NewClient[PlaylistRequest, PlaylistResponse](httpClient, baseURL+LibraryGetPlaylistProcedure, opts...),
		addToPlaylist:      connect.NewClient[PlaylistSongRequest, PlaylistResponse](httpClient, baseURL+LibraryAddToPlaylistProcedure, opts...),
		removeFromPlaylist: connect.NewClient[PlaylistSongRequest, PlaylistResponse](httpClient, baseURL+LibraryRemoveFromPlaylistProcedure, opts...),
		deletePlaylist:     connect.NewClient[PlaylistRequest, Empty](httpClient, baseURL+LibraryDeletePlaylistProcedure, opts...),
		watch:              connect.NewClient[Empty, Notification](httpClient, baseURL+LibraryWatchProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *LibraryClient) ListSongs(ctx context.Context) (*ListSongsResponse, error) {
	return call(ctx, c.listSongs, &Empty{})
}

func (c *LibraryClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	return call(ctx, c.search, &SearchRequest{Query: query})
}

// SubmitSearch sends a query to the debouncer. The result arrives on Watch.
func (c *LibraryClient) SubmitSearch(ctx context.Context, query string) error {
	_, err := call(ctx, c.search, &SearchRequest{Query: query, Debounced: true})
	return err
}

func (c *LibraryClient) Play(ctx context.Context, songID string) (*SessionResponse, error) {
	return call(ctx, c.play, &SongRequest{SongID: songID})
}

func (c *LibraryClient) Pause(ctx context.Context) (*SessionResponse, error) {
	return call(ctx, c.pause, &Empty{})
}

func (c *LibraryClient) Resume(ctx context.Context) (*SessionResponse, error) {
	return call(ctx, c.resume, &Empty{})
}

func (c *LibraryClient) Seek(ctx context.Context, position time.Duration) (*SessionResponse, error) {
	return call(ctx, c.seek, &SeekRequest{PositionMs: position.Milliseconds()})
}

func (c *LibraryClient) Stop(ctx context.Context) (*SessionResponse, error) {
	return call(ctx, c.stop, &Empty{})
}

func (c *LibraryClient) GetSession(ctx context.Context) (*SessionResponse, error) {
	return call(ctx, c.getSession, &Empty{})
}

func (c *LibraryClient) ToggleLike(ctx context.Context, songID string) (*ToggleLikeResponse, error) {
	return call(ctx, c.toggleLike, &SongRequest{SongID: songID})
}

func (c *LibraryClient) ListLiked(ctx context.Context) (*LikedSongsResponse, error) {
	return call(ctx, c.listLiked, &Empty{})
}

func (c *LibraryClient) CreatePlaylist(ctx context.Context, name, description string) (*PlaylistResponse, error) {
	return call(ctx, c.createPlaylist, &CreatePlaylistRequest{Name: name, Description: description})
}

func (c *LibraryClient) ListPlaylists(ctx context.Context) (*ListPlaylistsResponse, error) {
	return call(ctx, c.listPlaylists, &Empty{})
}

func (c *LibraryClient) GetPlaylist(ctx context.Context, playlistID string) (*PlaylistResponse, error) {
	return call(ctx, c.getPlaylist, &PlaylistRequest{PlaylistID: playlistID})
}

func (c *LibraryClient) AddToPlaylist(ctx context.Context, playlistID, songID string) (*PlaylistResponse, error) {
	return call(ctx, c.addToPlaylist, &PlaylistSongRequest{PlaylistID: playlistID, SongID: songID})
}

func (c *LibraryClient) RemoveFromPlaylist(ctx context.Context, playlistID, songID string) (*PlaylistResponse, error) {
	return call(ctx, c.removeFromPlaylist, &PlaylistSongRequest{PlaylistID: playlistID, SongID: songID})
}

func (c *LibraryClient) DeletePlaylist(ctx context.Context, playlistID string) error {
	_, err := call(ctx, c.deletePlaylist, &PlaylistRequest{PlaylistID: playlistID})
	return err
}

// Watch opens the notification stream. The first message is the initial state.
func (c *LibraryClient) Watch(ctx context.Context) (*connect.ServerStreamForClient[Notification], error) {
	return c.watch.CallServerStream(ctx, connect.NewRequest(&Empty{}))
}

// AdminClient is a client for the AdminService.
type AdminClient struct {
	getStatus      *connect.Client[Empty, StatusResponse]
	refreshCatalog *connect.Client[Empty, CatalogStatus]
	upload         *connect.Client[UploadRequest, UploadResponse]
	storageInfo    *connect.Client[Empty, StorageInfoResponse]
}

// NewAdminClient creates an AdminService client. token is sent with every call.
func NewAdminClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *AdminClient {
	opts = append([]connect.ClientOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(NewAdminTokenInterceptor(token)),
	}, opts...)
	return &AdminClient{
		getStatus:      connect.NewClient[Empty, StatusResponse](httpClient, baseURL+AdminGetStatusProcedure, opts...),
		refreshCatalog: connect.NewClient[Empty, CatalogStatus](httpClient, baseURL+AdminRefreshCatalogProcedure, opts...),
		upload:         connect.NewClient[UploadRequest, UploadResponse](httpClient, baseURL+AdminUploadProcedure, opts...),
		storageInfo:    connect.NewClient[Empty, StorageInfoResponse](httpClient, baseURL+AdminStorageInfoProcedure, opts...),
	}
}

func (c *AdminClient) GetStatus(ctx context.Context) (*StatusResponse, error) {
	return call(ctx, c.getStatus, &Empty{})
}

func (c *AdminClient) RefreshCatalog(ctx context.Context) (*CatalogStatus, error) {
	return call(ctx, c.refreshCatalog, &Empty{})
}

func (c *AdminClient) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	return call(ctx, c.upload, req)
}

func (c *AdminClient) StorageInfo(ctx context.Context) (*StorageInfoResponse, error) {
	return call(ctx, c.storageInfo, &Empty{})
}
