// Package upload adds new songs to the catalog from local audio files.
package upload

import (
	"context"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/app/catalog"
	"github.com/osa030/punjabibox/internal/domain/song"
)

var (
	// ErrInvalidRequest is returned when required fields are missing or malformed.
	ErrInvalidRequest = errors.New("invalid upload request")
	// ErrNoFile is returned when no audio data was provided.
	ErrNoFile = errors.New("please select an audio file")
	// ErrTooLarge is returned when the file exceeds the size limit.
	ErrTooLarge = errors.New("audio file is too large")
	// ErrNotAudio is returned when the file is not audio.
	ErrNotAudio = errors.New("file is not an audio file")
	// ErrDuplicate is returned when the song is already in the catalog.
	ErrDuplicate = errors.New("song is already in the catalog")
	// ErrTooLong is returned when the song exceeds the duration limit.
	ErrTooLong = errors.New("song exceeds the duration limit")
)

var rejections = map[string]error{
	CodeNotAudio:      ErrNotAudio,
	CodeDuplicateSong: ErrDuplicate,
	CodeDurationLimit: ErrTooLong,
}

// Request is a song submitted for upload.
type Request struct {
	Title         string `validate:"required"`
	Artist        string `validate:"required"`
	Album         string `validate:"required"`
	AlbumCoverURL string `validate:"required,url"`
	FileName      string `validate:"required"`
	ContentType   string
	Data          []byte
}

// Prober returns the duration in seconds of encoded audio.
type Prober func(data []byte) (float64, error)

// Config represents upload limits.
type Config struct {
	MaxBytes   int64
	MaxMinutes float64
}

// Service validates, stores and registers uploaded songs.
type Service struct {
	source   catalog.Source
	storage  catalog.Storage
	probe    Prober
	chain    *Chain
	maxBytes int64
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a new upload service. storage may be nil, in which
// case every upload fails with catalog.ErrNoStorage.
func NewService(cfg Config, source catalog.Source, storage catalog.Storage, songs Catalog, probe Prober) *Service {
	return &Service{
		source:  source,
		storage: storage,
		probe:   probe,
		chain: NewChain(
			AudioTypeCheck{},
			NewDuplicateSongCheck(songs),
			NewDurationLimitCheck(cfg.MaxMinutes),
		),
		maxBytes: cfg.MaxBytes,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Upload stores the audio file, then inserts the song into the catalog.
// Nothing is stored when validation or a check fails.
func (s *Service) Upload(ctx context.Context, req Request) (song.Song, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Artist = strings.TrimSpace(req.Artist)
	req.Album = strings.TrimSpace(req.Album)
	req.AlbumCoverURL = strings.TrimSpace(req.AlbumCoverURL)
	req.FileName = path.Base(strings.ReplaceAll(strings.TrimSpace(req.FileName), "\\", "/"))
	if req.FileName == "." || req.FileName == "/" {
		req.FileName = ""
	}

	if len(req.Data) == 0 {
		return song.Song{}, ErrNoFile
	}
	if err := s.validate.Struct(req); err != nil {
		return song.Song{}, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	if s.maxBytes > 0 && int64(len(req.Data)) > s.maxBytes {
		return song.Song{}, errors.Wrapf(ErrTooLarge, "%d bytes, limit %d", len(req.Data), s.maxBytes)
	}
	if s.storage == nil {
		return song.Song{}, catalog.ErrNoStorage
	}

	cand := &Candidate{Request: req}
	if s.probe != nil {
		d, err := s.probe(req.Data)
		if err != nil {
			zlog.Warn().Msgf("upload: could not probe duration of %s: %v", req.FileName, err)
		} else {
			cand.Duration = math.Round(d)
		}
	}

	if r := s.chain.Execute(ctx, cand); !r.Accepted {
		zlog.Info().Msgf("upload: rejected %q by %s: %s", req.Title, req.Artist, r.Code)
		if err, ok := rejections[r.Code]; ok {
			return song.Song{}, err
		}
		return song.Song{}, errors.Newf("upload rejected: %s", r.Code)
	}

	name := objectName(s.now(), req.FileName)
	objectPath, err := s.storage.UploadAudio(ctx, name, cand.ContentType, req.Data)
	if err != nil {
		return song.Song{}, err
	}
	if objectPath == "" {
		return song.Song{}, errors.New("upload failed: no path returned")
	}

	created, err := s.source.InsertSong(ctx, song.Metadata{
		Title:         req.Title,
		Artist:        req.Artist,
		Album:         req.Album,
		AlbumCoverURL: req.AlbumCoverURL,
		AudioURL:      s.storage.PublicURL(objectPath),
		Duration:      cand.Duration,
	})
	if err != nil {
		return song.Song{}, err
	}

	zlog.Info().Msgf("upload: added %q by %s (%s)", created.Title, created.Artist, created.ID)
	return created, nil
}

// objectName prefixes the file name with the upload time in Unix milliseconds.
func objectName(now time.Time, fileName string) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + fileName
}
