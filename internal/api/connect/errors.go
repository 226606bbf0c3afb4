package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/punjabibox/internal/app/catalog"
	"github.com/osa030/punjabibox/internal/app/library"
	"github.com/osa030/punjabibox/internal/app/playback"
	"github.com/osa030/punjabibox/internal/app/playlist"
	"github.com/osa030/punjabibox/internal/app/upload"
)

// errorCodes maps domain errors to connect codes. The first match wins;
// anything else came from the catalog backend and is reported as unavailable.
var errorCodes = []struct {
	err  error
	code connect.Code
}{
	{library.ErrUnknownSong, connect.CodeNotFound},
	{library.ErrUnknownPlaylist, connect.CodeNotFound},
	{upload.ErrDuplicate, connect.CodeAlreadyExists},
	{playlist.ErrEmptyName, connect.CodeInvalidArgument},
	{upload.ErrInvalidRequest, connect.CodeInvalidArgument},
	{upload.ErrNoFile, connect.CodeInvalidArgument},
	{upload.ErrTooLarge, connect.CodeInvalidArgument},
	{upload.ErrNotAudio, connect.CodeInvalidArgument},
	{upload.ErrTooLong, connect.CodeInvalidArgument},
	{playback.ErrNoSong, connect.CodeFailedPrecondition},
	{catalog.ErrReadOnly, connect.CodeFailedPrecondition},
	{catalog.ErrNoStorage, connect.CodeFailedPrecondition},
	{playback.ErrClosed, connect.CodeUnavailable},
}

func toConnectError(err error) error {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return connect.NewError(e.code, err)
		}
	}
	return connect.NewError(connect.CodeUnavailable, err)
}
