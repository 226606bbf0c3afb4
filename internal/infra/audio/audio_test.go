package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWAV builds a silent 16-bit mono PCM WAV file.
func makeWAV(sampleRate, samples int) []byte {
	le := binary.LittleEndian
	dataSize := samples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint32(sampleRate))
	_ = binary.Write(&buf, le, uint32(sampleRate*2))
	_ = binary.Write(&buf, le, uint16(2))
	_ = binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// fakeSink records streamers instead of sending them to a device.
type fakeSink struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	plays     int
	clears    int

	mix sync.Mutex
}

func (s *fakeSink) Play(st beep.Streamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	s.streamers = append(s.streamers, st)
	return nil
}

func (s *fakeSink) Lock()   { s.mix.Lock() }
func (s *fakeSink) Unlock() { s.mix.Unlock() }

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.streamers = nil
}

func (s *fakeSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// drain streams every queued streamer to its end, like the mixer would.
func (s *fakeSink) drain() {
	s.mu.Lock()
	streamers := s.streamers
	s.streamers = nil
	s.mu.Unlock()

	buf := make([][2]float64, 512)
	for _, st := range streamers {
		for i := 0; i < 10000; i++ {
			s.mix.Lock()
			_, ok := st.Stream(buf)
			s.mix.Unlock()
			if !ok {
				break
			}
		}
	}
}

func newAudioServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeDuration(t *testing.T) {
	d, err := ProbeDuration(makeWAV(8000, 16000))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 0.001)
}

func TestProbeDuration_Unsupported(t *testing.T) {
	_, err := ProbeDuration([]byte("definitely not audio"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDetectFormat(t *testing.T) {
	mime, ok := DetectFormat(makeWAV(8000, 10))
	assert.True(t, ok)
	assert.Equal(t, "audio/wav", mime)

	mime, ok = DetectFormat([]byte("%PDF-1.4 not audio"))
	assert.False(t, ok)
	assert.Equal(t, "application/pdf", mime)
}

func TestOutput_PlayAndSeek(t *testing.T) {
	srv := newAudioServer(t, map[string][]byte{"/a.wav": makeWAV(8000, 16000)})
	sink := &fakeSink{}
	out := NewOutputWithSink(Config{SampleRate: 8000}, sink)

	assert.ErrorIs(t, out.Play(context.Background()), ErrNoSource)

	out.SetSource(srv.URL + "/a.wav")
	require.NoError(t, out.Play(context.Background()))
	assert.Equal(t, 1, sink.playCount())
	assert.Equal(t, time.Duration(0), out.Position())

	require.NoError(t, out.Seek(time.Second))
	assert.Equal(t, time.Second, out.Position())

	require.NoError(t, out.Seek(time.Hour))
	assert.Less(t, out.Position(), 2*time.Second)

	out.Pause()
	require.NoError(t, out.Play(context.Background()))
	assert.Equal(t, 1, sink.playCount(), "resuming must not queue the source twice")

	require.NoError(t, out.Close())
	assert.Empty(t, out.Source())
}

func TestOutput_Resample(t *testing.T) {
	srv := newAudioServer(t, map[string][]byte{"/a.wav": makeWAV(8000, 800)})
	sink := &fakeSink{}
	out := NewOutputWithSink(Config{SampleRate: 44100}, sink)

	out.SetSource(srv.URL + "/a.wav")
	require.NoError(t, out.Play(context.Background()))
	assert.Equal(t, 1, sink.playCount())
}

func TestOutput_EndedAndReplay(t *testing.T) {
	srv := newAudioServer(t, map[string][]byte{"/a.wav": makeWAV(8000, 4000)})
	sink := &fakeSink{}
	out := NewOutputWithSink(Config{SampleRate: 8000}, sink)

	ended := make(chan string, 1)
	out.OnEnded(func(src string) { ended <- src })

	url := srv.URL + "/a.wav"
	out.SetSource(url)
	require.NoError(t, out.Play(context.Background()))

	sink.drain()

	select {
	case src := <-ended:
		assert.Equal(t, url, src)
	case <-time.After(time.Second):
		t.Fatal("ended was not reported")
	}

	require.NoError(t, out.Seek(0))
	require.NoError(t, out.Play(context.Background()))
	assert.Equal(t, 2, sink.playCount(), "a finished source is queued again")
}

func TestOutput_PlayErrors(t *testing.T) {
	srv := newAudioServer(t, map[string][]byte{"/notes.txt": []byte("hello, not audio at all")})

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: "/missing.mp3"},
		{name: "not audio", path: "/notes.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			out := NewOutputWithSink(Config{SampleRate: 8000}, sink)
			out.SetSource(srv.URL + tt.path)

			assert.Error(t, out.Play(context.Background()))
			assert.Equal(t, 0, sink.playCount())
		})
	}
}

func TestOutput_CancelledRequestDoesNotStart(t *testing.T) {
	srv := newAudioServer(t, map[string][]byte{"/a.wav": makeWAV(8000, 800)})
	sink := &fakeSink{}
	out := NewOutputWithSink(Config{SampleRate: 8000}, sink)
	out.SetSource(srv.URL + "/a.wav")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, out.Play(ctx), context.Canceled)
	assert.Equal(t, 0, sink.playCount())
}

func TestOutput_SetSourceUnloads(t *testing.T) {
	srv := newAudioServer(t, map[string][]byte{
		"/a.wav": makeWAV(8000, 16000),
		"/b.wav": makeWAV(8000, 16000),
	})
	sink := &fakeSink{}
	out := NewOutputWithSink(Config{SampleRate: 8000}, sink)

	out.SetSource(srv.URL + "/a.wav")
	require.NoError(t, out.Play(context.Background()))
	require.NoError(t, out.Seek(time.Second))

	out.SetSource(srv.URL + "/a.wav")
	assert.Equal(t, time.Second, out.Position(), "same source keeps the loaded audio")

	out.SetSource(srv.URL + "/b.wav")
	assert.Equal(t, time.Duration(0), out.Position())
	assert.Equal(t, 1, sink.clears)
	assert.ErrorIs(t, out.Seek(time.Second), ErrNotLoaded)
}
