package liked

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/punjabibox/internal/domain/song"
	"github.com/osa030/punjabibox/internal/infra/store"
)

var (
	songA = song.Song{ID: "a", Title: "Lahore", Artist: "Guru Randhawa", DurationSeconds: 200}
	songB = song.Song{ID: "b", Title: "Brown Munde", Artist: "AP Dhillon", DurationSeconds: 267}
)

func TestManager_ToggleLike(t *testing.T) {
	m := NewManager(store.NewMemoryBackend())

	assert.False(t, m.IsLiked(songA.ID))

	assert.True(t, m.ToggleLike(songA))
	assert.True(t, m.IsLiked(songA.ID))
	assert.Equal(t, 1, m.Count())

	assert.False(t, m.ToggleLike(songA))
	assert.False(t, m.IsLiked(songA.ID))
	assert.Equal(t, 0, m.Count())
}

func TestManager_ToggleTwiceRestoresSet(t *testing.T) {
	m := NewManager(store.NewMemoryBackend())
	m.ToggleLike(songA)
	before := m.List()

	m.ToggleLike(songB)
	m.ToggleLike(songB)

	assert.Equal(t, before, m.List())
}

func TestManager_ListKeepsLikeOrder(t *testing.T) {
	m := NewManager(store.NewMemoryBackend())
	m.ToggleLike(songB)
	m.ToggleLike(songA)

	assert.Equal(t, []song.Song{songB, songA}, m.List())
}

func TestManager_MatchesByIDNotSnapshot(t *testing.T) {
	m := NewManager(store.NewMemoryBackend())
	m.ToggleLike(songA)

	renamed := songA
	renamed.Title = "Lahore (Remix)"

	assert.False(t, m.ToggleLike(renamed), "same id must unlike even when metadata differs")
	assert.Equal(t, 0, m.Count())
}

func TestManager_Persistence(t *testing.T) {
	backend := store.NewMemoryBackend()
	m := NewManager(backend)
	m.ToggleLike(songA)
	m.ToggleLike(songB)

	persisted := store.Load[song.Song](backend, StorageKey)
	assert.Equal(t, []song.Song{songA, songB}, persisted)

	reopened := NewManager(backend)
	assert.True(t, reopened.IsLiked(songA.ID))
	assert.True(t, reopened.IsLiked(songB.ID))
	assert.Equal(t, 2, reopened.Count())
}

func TestManager_CorruptRecordStartsEmpty(t *testing.T) {
	backend := store.NewMemoryBackend()
	require.NoError(t, backend.Write(StorageKey, []byte(`{"broken":`)))

	m := NewManager(backend)
	assert.Equal(t, 0, m.Count())
	assert.True(t, m.ToggleLike(songA))
}
