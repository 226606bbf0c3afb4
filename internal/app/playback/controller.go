package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// Errors
var (
	ErrNoSong = errors.New("no song selected")
	ErrClosed = errors.New("controller closed")
)

// DefaultTrailSize is the number of recent events kept in Session.Trail.
const DefaultTrailSize = 5

// Output is the audio output the controller drives.
// Play blocks until playback has started or was rejected, and must not
// start playback once ctx is done.
type Output interface {
	SetSource(url string)
	Source() string
	Play(ctx context.Context) error
	Pause()
	Seek(position time.Duration) error
	Position() time.Duration
	OnEnded(fn func(source string))
	Close() error
}

// Config holds controller configuration.
type Config struct {
	TrailSize int
}

// Session is a snapshot of the playback state.
type Session struct {
	CurrentSong *song.Song
	State       State
	IsPlaying   bool
	LastError   string
	Position    time.Duration
	Trail       []TrailEntry
}

// Controller owns the single playback session.
// At most one song is loaded. Play requests run asynchronously and each one
// carries a sequence token; completions of superseded requests are ignored.
type Controller struct {
	mu sync.RWMutex

	output Output

	current   *song.Song
	state     State
	lastError string

	// Request tracking
	seq           uint64
	requestCancel context.CancelFunc
	wg            sync.WaitGroup

	trail     []TrailEntry
	trailSize int

	eventCh chan Event
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller driving output.
func NewController(output Output, config Config) *Controller {
	if config.TrailSize <= 0 {
		config.TrailSize = DefaultTrailSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		output:    output,
		state:     StateIdle,
		trail:     make([]TrailEntry, 0, config.TrailSize),
		trailSize: config.TrailSize,
		eventCh:   make(chan Event, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
	output.OnEnded(c.onEnded)
	return c
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Play selects s. Selecting the current song toggles between playing and
// paused; selecting another song switches the source and starts it.
// Failures surface through Session().LastError.
func (c *Controller) Play(s song.Song) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if c.current != nil && c.current.ID == s.ID {
		c.toggleLocked()
		return
	}
	c.switchLocked(s)
}

// Pause pauses the current song. Pausing a song that is not playing is a no-op.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.current == nil {
		return ErrNoSong
	}
	if c.state != StatePlaying {
		return nil
	}
	c.pauseLocked()
	return nil
}

// Resume resumes the current song, retrying after a failed request.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.current == nil {
		return ErrNoSong
	}
	if c.state == StatePlaying {
		return nil
	}
	c.resumeLocked()
	return nil
}

// Seek moves the playhead of the current song.
func (c *Controller) Seek(position time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.current == nil {
		return ErrNoSong
	}
	if position < 0 {
		position = 0
	}
	if err := c.output.Seek(position); err != nil {
		return errors.Wrap(err, "seek failed")
	}
	c.recordLocked("seek %s", position.Truncate(time.Second))
	return nil
}

// Stop unloads the current song and returns to idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.current == nil {
		return
	}

	c.invalidateLocked()
	c.output.Pause()
	c.output.SetSource("")

	c.current = nil
	c.lastError = ""
	c.state = StateIdle
	c.recordLocked("stopped")
	c.sendEventLocked(Event{Type: EventSongChanged, State: c.state})
}

// Session returns a snapshot of the playback state.
func (c *Controller) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Session{
		State:     c.state,
		LastError: c.lastError,
		Trail:     make([]TrailEntry, len(c.trail)),
	}
	copy(s.Trail, c.trail)

	if c.current != nil {
		s.CurrentSong = c.currentCopyLocked()
		s.IsPlaying = c.state == StatePlaying && c.output.Source() == c.current.AudioURL
		s.Position = c.output.Position()
	}
	return s
}

// Close stops playback, waits for in-flight requests, and releases the output.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.invalidateLocked()
	c.cancel()
	c.output.Pause()
	c.mu.Unlock()

	c.wg.Wait()

	if err := c.output.Close(); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to close output")
	}
	close(c.eventCh)
}

// switchLocked performs a cold source switch to s and requests playback.
func (c *Controller) switchLocked(s song.Song) {
	c.invalidateLocked()
	c.output.Pause()
	c.output.SetSource(s.AudioURL)
	// SetSource keeps the loaded audio when the URL is unchanged.
	if err := c.output.Seek(0); err != nil {
		zlog.Debug().Err(err).Msg("playback: failed to rewind on switch")
	}

	c.current = &s
	c.lastError = ""
	c.state = StatePlaying

	c.recordLocked("load %s (%s)", s.Title, s.AudioURL)
	c.sendEventLocked(Event{Type: EventSongChanged, Song: c.currentCopyLocked(), State: c.state})
	c.startRequestLocked()
}

func (c *Controller) toggleLocked() {
	if c.state == StatePlaying {
		c.pauseLocked()
		return
	}
	c.resumeLocked()
}

func (c *Controller) pauseLocked() {
	c.invalidateLocked()
	c.output.Pause()
	c.state = StatePaused

	c.recordLocked("paused")
	c.sendEventLocked(Event{Type: EventStateChanged, Song: c.currentCopyLocked(), State: c.state})
}

func (c *Controller) resumeLocked() {
	if c.output.Source() != c.current.AudioURL {
		c.output.SetSource(c.current.AudioURL)
	}
	c.state = StatePlaying

	c.recordLocked("play requested")
	c.sendEventLocked(Event{Type: EventStateChanged, Song: c.currentCopyLocked(), State: c.state})
	c.startRequestLocked()
}

// startRequestLocked issues an asynchronous play request for the current source.
// Must be called with lock held.
func (c *Controller) startRequestLocked() {
	c.invalidateLocked()

	token := c.seq
	ctx, cancel := context.WithCancel(c.ctx)
	c.requestCancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		err := c.output.Play(ctx)
		c.settle(token, err)
	}()
}

// settle applies the outcome of the play request identified by token.
func (c *Controller) settle(token uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || token != c.seq {
		zlog.Debug().Msgf("playback: ignoring stale play result token=%d current=%d", token, c.seq)
		return
	}
	c.requestCancel = nil

	if err == nil {
		c.lastError = ""
		c.recordLocked("playing")
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	c.state = StateErrored
	c.lastError = err.Error()
	zlog.Warn().Err(err).Msgf("playback: play request rejected: %s", c.current.AudioURL)

	c.recordLocked("error: %s", c.lastError)
	c.sendEventLocked(Event{Type: EventError, Song: c.currentCopyLocked(), State: c.state, Err: c.lastError})
	c.sendEventLocked(Event{Type: EventStateChanged, Song: c.currentCopyLocked(), State: c.state})
}

// onEnded handles the output's end-of-media notification.
func (c *Controller) onEnded(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.current == nil || source != c.current.AudioURL {
		return
	}

	c.invalidateLocked()
	c.state = StatePaused
	if err := c.output.Seek(0); err != nil {
		zlog.Debug().Err(err).Msg("playback: failed to rewind after end")
	}

	c.recordLocked("ended")
	c.sendEventLocked(Event{Type: EventSongEnded, Song: c.currentCopyLocked(), State: c.state})
}

// invalidateLocked cancels the in-flight request and advances the token so
// that its completion is ignored.
// Must be called with lock held.
func (c *Controller) invalidateLocked() {
	c.seq++
	if c.requestCancel != nil {
		c.requestCancel()
		c.requestCancel = nil
	}
}

func (c *Controller) currentCopyLocked() *song.Song {
	if c.current == nil {
		return nil
	}
	s := *c.current
	return &s
}

// recordLocked appends to the bounded activity trail.
// Must be called with lock held.
func (c *Controller) recordLocked(format string, args ...any) {
	entry := TrailEntry{At: time.Now(), Message: fmt.Sprintf(format, args...)}
	zlog.Debug().Msgf("playback: %s", entry.Message)

	if len(c.trail) >= c.trailSize {
		copy(c.trail, c.trail[1:])
		c.trail = c.trail[:len(c.trail)-1]
	}
	c.trail = append(c.trail, entry)
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- e:
	default:
		zlog.Debug().Msgf("playback: event channel full, dropping %s", e.Type)
	}
}
