package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/osa030/punjabibox/internal/app/library"
	"github.com/osa030/punjabibox/internal/app/upload"
	"github.com/osa030/punjabibox/internal/domain/song"
)

// AdminServiceName is the fully-qualified name of the AdminService.
const AdminServiceName = "punjabibox.v1.AdminService"

// AdminService procedures.
const (
	AdminGetStatusProcedure      = "/" + AdminServiceName + "/GetStatus"
	AdminRefreshCatalogProcedure = "/" + AdminServiceName + "/RefreshCatalog"
	AdminUploadProcedure         = "/" + AdminServiceName + "/Upload"
	AdminStorageInfoProcedure    = "/" + AdminServiceName + "/StorageInfo"
)

// AdminService implements the AdminService RPC.
type AdminService struct {
	library *library.Service
}

// NewAdminService creates a new AdminService.
func NewAdminService(lib *library.Service) *AdminService {
	return &AdminService{library: lib}
}

// NewAdminServiceHandler builds an HTTP handler serving every AdminService
// procedure, and returns the path to mount it on.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(AdminGetStatusProcedure, connect.NewUnaryHandler(AdminGetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(AdminRefreshCatalogProcedure, connect.NewUnaryHandler(AdminRefreshCatalogProcedure, svc.RefreshCatalog, opts...))
	mux.Handle(AdminUploadProcedure, connect.NewUnaryHandler(AdminUploadProcedure, svc.Upload, opts...))
	mux.Handle(AdminStorageInfoProcedure, connect.NewUnaryHandler(AdminStorageInfoProcedure, svc.StorageInfo, opts...))
	return "/" + AdminServiceName + "/", mux
}

// GetStatus returns the daemon status.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return connect.NewResponse(&StatusResponse{
		Catalog:     toCatalogStatus(s.library.CatalogStatus()),
		Session:     toSession(s.library.Session()),
		Liked:       s.library.LikedCount(),
		Playlists:   len(s.library.Playlists()),
		Subscribers: s.library.Notifications().SubscriberCount(),
	}), nil
}

// RefreshCatalog reloads the catalog from its source. A failed load is
// reported in the returned status, not as an RPC error.
func (s *AdminService) RefreshCatalog(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[CatalogStatus], error) {
	status := toCatalogStatus(s.library.RefreshCatalog(ctx))
	return connect.NewResponse(&status), nil
}

// Upload stores a new song.
func (s *AdminService) Upload(
	ctx context.Context,
	req *connect.Request[UploadRequest],
) (*connect.Response[UploadResponse], error) {
	created, err := s.library.Upload(ctx, upload.Request{
		Title:         req.Msg.Title,
		Artist:        req.Msg.Artist,
		Album:         req.Msg.Album,
		AlbumCoverURL: req.Msg.AlbumCover,
		FileName:      req.Msg.FileName,
		ContentType:   req.Msg.ContentType,
		Data:          req.Msg.Data,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&UploadResponse{Song: created}), nil
}

// StorageInfo lists the audio bucket.
func (s *AdminService) StorageInfo(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StorageInfoResponse], error) {
	info, err := s.library.StorageInfo(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	objects := info.Objects
	if objects == nil {
		objects = []song.StoredObject{}
	}
	return connect.NewResponse(&StorageInfoResponse{Objects: objects, SongCount: info.SongCount}), nil
}
