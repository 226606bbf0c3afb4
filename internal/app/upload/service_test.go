package upload

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/punjabibox/internal/app/catalog"
	"github.com/osa030/punjabibox/internal/domain/song"
)

// wavHeader returns a minimal RIFF/WAVE payload.
func wavHeader() []byte {
	b := make([]byte, 0, 64)
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, 36)
	b = append(b, "WAVEfmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1)    // PCM
	b = binary.LittleEndian.AppendUint16(b, 1)    // mono
	b = binary.LittleEndian.AppendUint32(b, 8000) // sample rate
	b = binary.LittleEndian.AppendUint32(b, 16000)
	b = binary.LittleEndian.AppendUint16(b, 2)
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, 0)
	return b
}

type staticCatalog []song.Song

func (c staticCatalog) Songs() []song.Song { return c }

type fakeSource struct {
	inserted []song.Metadata
	err      error
}

func (f *fakeSource) FetchCatalog(context.Context) ([]song.Song, error) { return nil, nil }

func (f *fakeSource) InsertSong(_ context.Context, m song.Metadata) (song.Song, error) {
	if f.err != nil {
		return song.Song{}, f.err
	}
	f.inserted = append(f.inserted, m)
	return song.Record{ID: "new-id", Title: m.Title, Artist: m.Artist, Album: m.Album,
		AlbumCoverURL: m.AlbumCoverURL, AudioURL: m.AudioURL, Duration: m.Duration}.Song(), nil
}

type fakeStorage struct {
	names []string
	types []string
	err   error
}

func (f *fakeStorage) UploadAudio(_ context.Context, name, contentType string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	f.types = append(f.types, contentType)
	return name, nil
}

func (f *fakeStorage) PublicURL(p string) string {
	return "https://abc.supabase.co/storage/v1/object/public/songs/" + p
}

func (f *fakeStorage) ListObjects(context.Context) ([]song.StoredObject, error) { return nil, nil }

func validRequest() Request {
	return Request{
		Title:         "Brown Munde",
		Artist:        "AP Dhillon",
		Album:         "Brown Munde",
		AlbumCoverURL: "https://images.example.com/brown-munde.jpg",
		FileName:      "brown munde.wav",
		ContentType:   "audio/wav",
		Data:          wavHeader(),
	}
}

func newTestService(src *fakeSource, st *fakeStorage, songs []song.Song, cfg Config) *Service {
	s := NewService(cfg, src, st, staticCatalog(songs), func([]byte) (float64, error) { return 187.6, nil })
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return s
}

func TestService_Upload(t *testing.T) {
	src := &fakeSource{}
	st := &fakeStorage{}
	s := newTestService(src, st, nil, Config{})

	created, err := s.Upload(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"1700000000123-brown munde.wav"}, st.names)
	assert.Equal(t, "audio/wav", st.types[0])
	require.Len(t, src.inserted, 1)
	assert.Equal(t, "https://abc.supabase.co/storage/v1/object/public/songs/1700000000123-brown munde.wav", src.inserted[0].AudioURL)
	assert.Equal(t, 188.0, src.inserted[0].Duration)
	assert.Equal(t, "new-id", created.ID)
	assert.Equal(t, "Brown Munde", created.Title)
}

func TestService_Upload_Rejections(t *testing.T) {
	existing := []song.Song{{ID: "1", Title: "Brown Munde (Remastered 2023)", Artist: "AP Dhillon, Gurinder Gill"}}

	tests := []struct {
		name    string
		mutate  func(r *Request)
		cfg     Config
		songs   []song.Song
		noStore bool
		wantErr error
	}{
		{
			name:    "no file",
			mutate:  func(r *Request) { r.Data = nil },
			wantErr: ErrNoFile,
		},
		{
			name:    "missing title",
			mutate:  func(r *Request) { r.Title = "   " },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "cover is not a url",
			mutate:  func(r *Request) { r.AlbumCoverURL = "cover.jpg" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "file name is only a directory",
			mutate:  func(r *Request) { r.FileName = "/" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "too large",
			cfg:     Config{MaxBytes: 10},
			wantErr: ErrTooLarge,
		},
		{
			name:    "not audio",
			mutate:  func(r *Request) { r.Data = []byte("%PDF-1.4 not a song") },
			wantErr: ErrNotAudio,
		},
		{
			name:    "duplicate",
			songs:   existing,
			wantErr: ErrDuplicate,
		},
		{
			name:    "too long",
			cfg:     Config{MaxMinutes: 3},
			wantErr: ErrTooLong,
		},
		{
			name:    "no storage",
			noStore: true,
			wantErr: catalog.ErrNoStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{}
			st := &fakeStorage{}
			s := newTestService(src, st, tt.songs, tt.cfg)
			if tt.noStore {
				s.storage = nil
			}

			req := validRequest()
			if tt.mutate != nil {
				tt.mutate(&req)
			}

			_, err := s.Upload(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, st.names, "nothing is stored on rejection")
			assert.Empty(t, src.inserted)
		})
	}
}

func TestService_Upload_ProbeFailureKeepsZeroDuration(t *testing.T) {
	src := &fakeSource{}
	st := &fakeStorage{}
	s := NewService(Config{MaxMinutes: 1}, src, st, staticCatalog(nil), func([]byte) (float64, error) {
		return 0, errors.New("unsupported")
	})

	_, err := s.Upload(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, src.inserted, 1)
	assert.Zero(t, src.inserted[0].Duration)
}

func TestService_Upload_BackendErrors(t *testing.T) {
	boom := errors.New("503")

	st := &fakeStorage{err: boom}
	s := newTestService(&fakeSource{}, st, nil, Config{})
	_, err := s.Upload(context.Background(), validRequest())
	assert.ErrorIs(t, err, boom)

	src := &fakeSource{err: catalog.ErrReadOnly}
	s = newTestService(src, &fakeStorage{}, nil, Config{})
	_, err = s.Upload(context.Background(), validRequest())
	assert.ErrorIs(t, err, catalog.ErrReadOnly)
}

func TestAudioTypeCheck(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		declared string
		accepted bool
		resolved string
	}{
		{name: "wav content", data: wavHeader(), declared: "", accepted: true, resolved: "audio/wav"},
		{name: "unknown content with audio type", data: []byte{0x00, 0x13, 0x37, 0x00, 0xfe}, declared: "audio/flac", accepted: true, resolved: "audio/flac"},
		{name: "unknown content with other type", data: []byte{0x00, 0x13, 0x37, 0x00, 0xfe}, declared: "application/zip"},
		{name: "text declared as audio", data: []byte("just some lyrics"), declared: "audio/mpeg"},
		{name: "pdf", data: []byte("%PDF-1.4"), declared: "audio/mpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Candidate{Request: Request{Data: tt.data, ContentType: tt.declared}}
			r := AudioTypeCheck{}.Check(context.Background(), c)
			assert.Equal(t, tt.accepted, r.Accepted)
			if tt.accepted {
				assert.Equal(t, tt.resolved, c.ContentType)
			} else {
				assert.Equal(t, CodeNotAudio, r.Code)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lahore", "lahore"},
		{"Lahore - 2019 Remaster", "lahore"},
		{"Lahore (Remastered 2023)", "lahore"},
		{"Lahore [Remastered]", "lahore"},
		{"Lahore (Radio Edit)", "lahore"},
		{"Lahore (Live)", "lahore"},
		{"Lahore - Live at Wembley", "lahore"},
		{"Lahore (feat. Someone)", "lahore"},
		{"  Lahore   Nights  ", "lahore nights"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeTitle(tt.in))
		})
	}
}

func TestDuplicateSongCheck(t *testing.T) {
	catalogSongs := staticCatalog{{ID: "1", Title: "Excuses", Artist: "AP Dhillon, Gurinder Gill"}}
	check := NewDuplicateSongCheck(catalogSongs)

	tests := []struct {
		name     string
		title    string
		artist   string
		accepted bool
	}{
		{name: "same song", title: "Excuses", artist: "AP Dhillon", accepted: false},
		{name: "remaster", title: "Excuses - 2021 Remaster", artist: "ap dhillon x Intense", accepted: false},
		{name: "cover", title: "Excuses", artist: "Diljit Dosanjh", accepted: true},
		{name: "different song", title: "Insane", artist: "AP Dhillon", accepted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := check.Check(context.Background(), &Candidate{Request: Request{Title: tt.title, Artist: tt.artist}})
			assert.Equal(t, tt.accepted, r.Accepted)
		})
	}
}

func TestDurationLimitCheck(t *testing.T) {
	assert.True(t, NewDurationLimitCheck(0).Check(context.Background(), &Candidate{Duration: 9999}).Accepted)
	assert.True(t, NewDurationLimitCheck(3).Check(context.Background(), &Candidate{Duration: 0}).Accepted)
	assert.True(t, NewDurationLimitCheck(3).Check(context.Background(), &Candidate{Duration: 180}).Accepted)

	r := NewDurationLimitCheck(3).Check(context.Background(), &Candidate{Duration: 181})
	assert.False(t, r.Accepted)
	assert.Equal(t, CodeDurationLimit, r.Code)
}
