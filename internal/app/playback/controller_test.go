package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// fakeOutput is a scriptable Output.
type fakeOutput struct {
	mu       sync.Mutex
	source   string
	playing  bool
	position time.Duration
	onEnded  func(string)
	plays    int
	pauses   int
	closed   bool

	// block makes every Play wait on its own entry in calls until resolved or ctx is done.
	block bool
	calls []chan error
	// fail makes every non-blocking Play return this error.
	fail error
}

// SetSource keeps the loaded position when the URL is unchanged, like audio.Output.
func (f *fakeOutput) SetSource(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == f.source {
		return
	}
	f.source = url
	f.playing = false
	f.position = 0
}

func (f *fakeOutput) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeOutput) Play(ctx context.Context) error {
	f.mu.Lock()
	f.plays++
	var gate chan error
	if f.block {
		gate = make(chan error, 1)
		f.calls = append(f.calls, gate)
	}
	fail := f.fail
	f.mu.Unlock()

	if gate != nil {
		select {
		case err := <-gate:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if fail != nil {
		return fail
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.playing = true
	return nil
}

func (f *fakeOutput) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	f.playing = false
}

func (f *fakeOutput) Seek(position time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
	return nil
}

func (f *fakeOutput) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeOutput) OnEnded(fn func(string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEnded = fn
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutput) resolve(call int, err error) {
	f.mu.Lock()
	gate := f.calls[call]
	f.mu.Unlock()
	gate <- err
}

func (f *fakeOutput) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeOutput) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeOutput) end() {
	f.mu.Lock()
	fn := f.onEnded
	src := f.source
	f.playing = false
	f.position = 90 * time.Second
	f.mu.Unlock()
	fn(src)
}

var (
	songA = song.Song{ID: "a", Title: "Lahore", AudioURL: "https://cdn.example/a.mp3", DurationSeconds: 200}
	songB = song.Song{ID: "b", Title: "Excuses", AudioURL: "https://cdn.example/b.mp3", DurationSeconds: 176}
)

func newTestController(t *testing.T, out *fakeOutput) *Controller {
	t.Helper()
	c := NewController(out, Config{})
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestController_InitialSession(t *testing.T) {
	c := newTestController(t, &fakeOutput{})

	s := c.Session()
	assert.Nil(t, s.CurrentSong)
	assert.Equal(t, StateIdle, s.State)
	assert.False(t, s.IsPlaying)
	assert.Empty(t, s.LastError)
}

func TestController_PlayNewSong(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)

	s := c.Session()
	require.NotNil(t, s.CurrentSong)
	assert.Equal(t, songA.ID, s.CurrentSong.ID)
	assert.Equal(t, StatePlaying, s.State)
	assert.True(t, s.IsPlaying)
	assert.Equal(t, songA.AudioURL, out.Source())

	waitFor(t, out.isPlaying)
	assert.Empty(t, c.Session().LastError)
}

func TestController_PlaySameSongToggles(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, out.isPlaying)

	c.Play(songA)
	s := c.Session()
	assert.Equal(t, StatePaused, s.State)
	assert.False(t, s.IsPlaying)
	assert.False(t, out.isPlaying())
	assert.Equal(t, songA.AudioURL, out.Source(), "toggle must not reload the source")

	c.Play(songA)
	assert.Equal(t, StatePlaying, c.Session().State)
	waitFor(t, out.isPlaying)
}

func TestController_SwitchSong(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, out.isPlaying)

	c.Play(songB)

	s := c.Session()
	require.NotNil(t, s.CurrentSong)
	assert.Equal(t, songB.ID, s.CurrentSong.ID)
	assert.Equal(t, StatePlaying, s.State)
	assert.Equal(t, songB.AudioURL, out.Source())
	waitFor(t, out.isPlaying)
}

func TestController_RejectedPlay(t *testing.T) {
	out := &fakeOutput{fail: errors.New("NotAllowedError: play() failed")}
	c := newTestController(t, out)

	c.Play(songA)

	waitFor(t, func() bool { return c.Session().State == StateErrored })
	s := c.Session()
	assert.Equal(t, "NotAllowedError: play() failed", s.LastError)
	require.NotNil(t, s.CurrentSong, "current song is retained after a failure")
	assert.Equal(t, songA.ID, s.CurrentSong.ID)
	assert.False(t, s.IsPlaying)
}

func TestController_RetryAfterFailureClearsError(t *testing.T) {
	out := &fakeOutput{fail: errors.New("network error")}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, func() bool { return c.Session().State == StateErrored })

	out.mu.Lock()
	out.fail = nil
	out.mu.Unlock()

	c.Play(songA)
	waitFor(t, out.isPlaying)
	waitFor(t, func() bool { return c.Session().LastError == "" })
	assert.Equal(t, StatePlaying, c.Session().State)
}

func TestController_SwitchClearsPreviousError(t *testing.T) {
	out := &fakeOutput{fail: errors.New("decode error")}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, func() bool { return c.Session().State == StateErrored })

	out.mu.Lock()
	out.fail = nil
	out.mu.Unlock()

	c.Play(songB)
	assert.Empty(t, c.Session().LastError)
	assert.Equal(t, StatePlaying, c.Session().State)
}

func TestController_StaleCompletionIsIgnored(t *testing.T) {
	tests := []struct {
		name      string
		second    error
		wantState State
		wantError string
	}{
		{name: "newer request succeeds", second: nil, wantState: StatePlaying, wantError: ""},
		{name: "newer request fails", second: errors.New("late failure for b"), wantState: StateErrored, wantError: "late failure for b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &fakeOutput{block: true}
			c := newTestController(t, out)

			c.Play(songA)
			waitFor(t, func() bool { return out.callCount() == 1 })
			c.Play(songB)
			waitFor(t, func() bool { return out.callCount() == 2 })

			// The superseded request reports a failure after the switch.
			out.resolve(0, errors.New("late failure for a"))
			time.Sleep(20 * time.Millisecond)
			assert.Equal(t, StatePlaying, c.Session().State)
			assert.Empty(t, c.Session().LastError)

			out.resolve(1, tt.second)
			if tt.second == nil {
				waitFor(t, out.isPlaying)
			}
			waitFor(t, func() bool {
				s := c.Session()
				return s.State == tt.wantState && s.LastError == tt.wantError
			})
			assert.Equal(t, songB.ID, c.Session().CurrentSong.ID)
		})
	}
}

func TestController_PauseWhileRequestPending(t *testing.T) {
	out := &fakeOutput{block: true}
	c := newTestController(t, out)

	c.Play(songA)
	c.Play(songA)

	assert.Equal(t, StatePaused, c.Session().State)

	// The cancelled request must not flip the state back or start audio.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatePaused, c.Session().State)
	assert.Empty(t, c.Session().LastError)
	assert.False(t, out.isPlaying())
}

func TestController_Ended(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, out.isPlaying)

	out.end()

	s := c.Session()
	assert.Equal(t, StatePaused, s.State)
	assert.False(t, s.IsPlaying)
	assert.Equal(t, time.Duration(0), s.Position)
	require.NotNil(t, s.CurrentSong)
	assert.Equal(t, songA.ID, s.CurrentSong.ID)
}

func TestController_EndedForOtherSourceIsIgnored(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, out.isPlaying)

	out.onEnded(songB.AudioURL)
	assert.Equal(t, StatePlaying, c.Session().State)
}

func TestController_SwitchToSongSharingAudioStartsOver(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, out.isPlaying)
	require.NoError(t, c.Seek(75*time.Second))

	reupload := song.Song{ID: "a2", Title: "Lahore (Live)", AudioURL: songA.AudioURL, DurationSeconds: 200}
	c.Play(reupload)
	waitFor(t, out.isPlaying)

	s := c.Session()
	require.NotNil(t, s.CurrentSong)
	assert.Equal(t, "a2", s.CurrentSong.ID)
	assert.Equal(t, time.Duration(0), out.Position())
}

func TestController_PauseResumeSeek(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	assert.ErrorIs(t, c.Pause(), ErrNoSong)
	assert.ErrorIs(t, c.Resume(), ErrNoSong)
	assert.ErrorIs(t, c.Seek(time.Second), ErrNoSong)

	c.Play(songA)
	waitFor(t, out.isPlaying)

	require.NoError(t, c.Seek(42*time.Second))
	assert.Equal(t, 42*time.Second, c.Session().Position)

	require.NoError(t, c.Seek(-time.Second))
	assert.Equal(t, time.Duration(0), c.Session().Position)

	require.NoError(t, c.Pause())
	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.Session().State)

	require.NoError(t, c.Resume())
	assert.Equal(t, StatePlaying, c.Session().State)
	waitFor(t, out.isPlaying)
}

func TestController_Stop(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)
	waitFor(t, out.isPlaying)

	c.Stop()

	s := c.Session()
	assert.Nil(t, s.CurrentSong)
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, out.Source())
}

func TestController_TrailKeepsLastEntries(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	for i := 0; i < 4; i++ {
		c.Play(songA)
		c.Play(songB)
	}

	trail := c.Session().Trail
	assert.Len(t, trail, DefaultTrailSize)
}

func TestController_Events(t *testing.T) {
	out := &fakeOutput{}
	c := newTestController(t, out)

	c.Play(songA)

	select {
	case e := <-c.Events():
		assert.Equal(t, EventSongChanged, e.Type)
		require.NotNil(t, e.Song)
		assert.Equal(t, songA.ID, e.Song.ID)
		assert.Equal(t, StatePlaying, e.State)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestController_Close(t *testing.T) {
	out := &fakeOutput{block: true}
	c := NewController(out, Config{})

	c.Play(songA)
	c.Close()

	out.mu.Lock()
	assert.True(t, out.closed)
	out.mu.Unlock()

	for range c.Events() {
	}

	assert.NotPanics(t, func() {
		c.Play(songB)
		c.Stop()
		c.Close()
	})
}
