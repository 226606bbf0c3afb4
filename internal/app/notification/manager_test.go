package notification

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/punjabibox/internal/app/playback"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*Notification
	err   error
	delay time.Duration
}

func (s *recordingStream) Send(n *Notification) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingStream) received() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.got...)
}

func TestManager_SubscribeAndBroadcast(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{}

	idA := m.Subscribe(a)
	m.Subscribe(b)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&Notification{Kind: KindSession, Session: &playback.Session{State: playback.StatePlaying}})
	m.Broadcast(&Notification{Kind: KindCollection, Collection: CollectionLiked})

	gotA := a.received()
	require.Len(t, gotA, 2)
	assert.Equal(t, uint64(1), gotA[0].SequenceNo)
	assert.Equal(t, uint64(2), gotA[1].SequenceNo)
	assert.Equal(t, playback.StatePlaying, gotA[0].Session.State)
	assert.Len(t, b.received(), 2)

	m.Unsubscribe(idA)
	m.Broadcast(&Notification{Kind: KindCatalog})
	assert.Len(t, a.received(), 2)
	assert.Len(t, b.received(), 3)
}

func TestManager_BroadcastSkipsFailingAndSlowSubscribers(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond

	failing := &recordingStream{err: errors.New("stream closed")}
	slow := &recordingStream{delay: 200 * time.Millisecond}
	healthy := &recordingStream{}
	m.Subscribe(failing)
	m.Subscribe(slow)
	m.Subscribe(healthy)

	start := time.Now()
	m.Broadcast(&Notification{Kind: KindSearch})
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Len(t, healthy.received(), 1)
}

func TestManager_Send(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe(s)

	require.NoError(t, m.Send(id, &Notification{Kind: KindCatalog}))
	require.NoError(t, m.Send("unknown", &Notification{Kind: KindCatalog}))
	got := s.received()
	require.Len(t, got, 1)
	assert.Zero(t, got[0].SequenceNo)

	m.Close()
	assert.Zero(t, m.SubscriberCount())
}
