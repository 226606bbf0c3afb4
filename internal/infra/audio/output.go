package audio

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/app/playback"
)

// Errors
var (
	ErrNoSource  = errors.New("no source set")
	ErrNotLoaded = errors.New("source not loaded")
)

// maxAudioBytes bounds a single download.
const maxAudioBytes = 200 << 20

// Sink is the mixer decoded audio is sent to.
type Sink interface {
	Play(s beep.Streamer) error
	Lock()
	Unlock()
	Clear()
}

// Config holds output configuration.
type Config struct {
	SampleRate  int
	BufferSize  time.Duration
	HTTPTimeout time.Duration
}

// loadedSource is a fully downloaded and decoded source.
type loadedSource struct {
	url      string
	gen      uint64
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	done     bool
}

// Output plays audio URLs through a Sink.
// Sources are downloaded in full on the first Play so that seeking works.
type Output struct {
	mu sync.Mutex

	client     *http.Client
	sink       Sink
	sampleRate beep.SampleRate

	source  string
	loaded  *loadedSource
	gen     uint64
	onEnded func(source string)
}

// NewOutput creates an output playing through the system speaker.
func NewOutput(config Config) *Output {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100 * time.Millisecond
	}
	sr := beep.SampleRate(config.SampleRate)
	return NewOutputWithSink(config, &speakerSink{sampleRate: sr, bufferSize: sr.N(config.BufferSize)})
}

// NewOutputWithSink creates an output playing through sink.
func NewOutputWithSink(config Config, sink Sink) *Output {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = 60 * time.Second
	}
	return &Output{
		client:     &http.Client{Timeout: config.HTTPTimeout},
		sink:       sink,
		sampleRate: beep.SampleRate(config.SampleRate),
		onEnded:    func(string) {},
	}
}

// SetSource selects the URL the next Play loads. Changing the URL discards
// the currently loaded audio.
func (o *Output) SetSource(url string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if url == o.source {
		return
	}
	o.unloadLocked()
	o.source = url
}

// Source returns the selected URL.
func (o *Output) Source() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.source
}

// OnEnded registers the end-of-media handler. It is called from its own goroutine.
func (o *Output) OnEnded(fn func(source string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}

// Play starts or resumes the selected source. The first Play for a source
// downloads and decodes it; playback does not start if ctx is done by then.
func (o *Output) Play(ctx context.Context) error {
	o.mu.Lock()
	src := o.source
	if src == "" {
		o.mu.Unlock()
		return ErrNoSource
	}
	if o.loaded != nil && o.loaded.url == src {
		defer o.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return err
		}
		return o.startLocked()
	}
	o.mu.Unlock()

	data, err := o.fetch(ctx, src)
	if err != nil {
		return err
	}
	streamer, format, err := Decode(data)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		streamer.Close()
		return err
	}
	if o.source != src {
		streamer.Close()
		return errors.Newf("source changed while loading %s", src)
	}

	o.unloadLocked()
	o.gen++
	o.loaded = &loadedSource{
		url:      src,
		gen:      o.gen,
		streamer: streamer,
		format:   format,
	}
	zlog.Debug().Msgf("audio: loaded %s (%d Hz, %d channels, %s)",
		src, format.SampleRate, format.NumChannels, format.SampleRate.D(streamer.Len()).Truncate(time.Second))

	return o.startLocked()
}

// startLocked unpauses the loaded source, queueing it on the sink again when
// it has not been queued yet or already ran to the end.
// Must be called with lock held.
func (o *Output) startLocked() error {
	l := o.loaded
	if l.ctrl != nil && !l.done {
		o.sink.Lock()
		l.ctrl.Paused = false
		o.sink.Unlock()
		return nil
	}

	if l.done {
		o.sink.Lock()
		if l.streamer.Position() >= l.streamer.Len() {
			_ = l.streamer.Seek(0)
		}
		o.sink.Unlock()
	}

	var s beep.Streamer = l.streamer
	if l.format.SampleRate != o.sampleRate {
		s = beep.Resample(4, l.format.SampleRate, o.sampleRate, s)
	}

	gen := l.gen
	url := l.url
	l.ctrl = &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() {
		// Runs on the mixer goroutine with the sink locked.
		go o.ended(url, gen)
	}))}
	l.done = false

	if err := o.sink.Play(l.ctrl); err != nil {
		l.ctrl = nil
		return errors.Wrap(err, "failed to start audio output")
	}
	return nil
}

func (o *Output) ended(url string, gen uint64) {
	o.mu.Lock()
	if o.loaded == nil || o.loaded.gen != gen {
		o.mu.Unlock()
		return
	}
	o.loaded.done = true
	fn := o.onEnded
	o.mu.Unlock()

	zlog.Debug().Msgf("audio: ended %s", url)
	fn(url)
}

// Pause pauses the loaded source.
func (o *Output) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loaded == nil || o.loaded.ctrl == nil {
		return
	}
	o.sink.Lock()
	o.loaded.ctrl.Paused = true
	o.sink.Unlock()
}

// Seek moves the playhead, clamped to the length of the source.
func (o *Output) Seek(position time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loaded == nil {
		if position == 0 {
			return nil
		}
		return ErrNotLoaded
	}

	l := o.loaded
	n := l.format.SampleRate.N(position)
	if n < 0 {
		n = 0
	}
	if last := l.streamer.Len() - 1; n > last {
		n = max(last, 0)
	}

	o.sink.Lock()
	defer o.sink.Unlock()
	if err := l.streamer.Seek(n); err != nil {
		return errors.Wrap(err, "failed to seek")
	}
	return nil
}

// Position returns the playhead of the loaded source.
func (o *Output) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loaded == nil {
		return 0
	}
	o.sink.Lock()
	n := o.loaded.streamer.Position()
	o.sink.Unlock()
	return o.loaded.format.SampleRate.D(n)
}

// Close stops playback and releases the loaded source.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.unloadLocked()
	o.source = ""
	return nil
}

// unloadLocked removes the loaded source from the sink and closes it.
// Must be called with lock held.
func (o *Output) unloadLocked() {
	if o.loaded == nil {
		return
	}
	o.sink.Clear()
	if err := o.loaded.streamer.Close(); err != nil {
		zlog.Debug().Err(err).Msgf("audio: failed to close %s", o.loaded.url)
	}
	o.loaded = nil
}

func (o *Output) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", url)
	}
	if len(data) > maxAudioBytes {
		return nil, errors.Newf("%s exceeds %d bytes", url, maxAudioBytes)
	}
	return data, nil
}

// speakerSink plays through the system audio device.
// The device is opened on first Play; until then no mixer goroutine runs.
type speakerSink struct {
	sampleRate beep.SampleRate
	bufferSize int

	mu          sync.Mutex
	initialized bool
}

func (s *speakerSink) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := speaker.Init(s.sampleRate, s.bufferSize); err != nil {
		return errors.Wrap(err, "failed to initialize speaker")
	}
	s.initialized = true
	zlog.Info().Msgf("audio: speaker initialized (%d Hz, buffer %d samples)", s.sampleRate, s.bufferSize)
	return nil
}

func (s *speakerSink) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *speakerSink) Play(st beep.Streamer) error {
	if err := s.init(); err != nil {
		return err
	}
	speaker.Play(st)
	return nil
}

func (s *speakerSink) Lock() {
	if s.ready() {
		speaker.Lock()
	}
}

func (s *speakerSink) Unlock() {
	if s.ready() {
		speaker.Unlock()
	}
}

func (s *speakerSink) Clear() {
	if s.ready() {
		speaker.Clear()
	}
}

var _ playback.Output = (*Output)(nil)
