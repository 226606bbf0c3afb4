package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Songs []string `json:"songs"`
}

// failingBackend simulates an unavailable storage medium.
type failingBackend struct {
	readErr  error
	writeErr error
	writes   int
}

func (b *failingBackend) Read(key string) ([]byte, error) {
	return nil, b.readErr
}

func (b *failingBackend) Write(key string, data []byte) error {
	b.writes++
	return b.writeErr
}

func TestLoad_AbsentKeyIsEmpty(t *testing.T) {
	items := Load[item](NewMemoryBackend(), "user-playlists")
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestLoad_CorruptRecordIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{{{"},
		{name: "wrong shape", data: `{"id":"x"}`},
		{name: "json null", data: "null"},
		{name: "truncated", data: `[{"id":"a","name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMemoryBackend()
			require.NoError(t, b.Write("k", []byte(tt.data)))

			items := Load[item](b, "k")
			assert.NotNil(t, items)
			assert.Empty(t, items)
		})
	}
}

func TestLoad_ReadFailureIsEmpty(t *testing.T) {
	items := Load[item](&failingBackend{readErr: errors.New("disabled")}, "k")
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		items []item
	}{
		{name: "empty collection", items: []item{}},
		{
			name: "non-empty collection",
			items: []item{
				{ID: "p1", Name: "Road Trip", Songs: []string{"a", "b"}},
				{ID: "p2", Name: "Gym", Songs: []string{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMemoryBackend()
			Save(b, "user-playlists", tt.items)

			loaded := Load[item](b, "user-playlists")
			assert.Equal(t, tt.items, loaded)
		})
	}
}

func TestSave_WriteFailureIsSwallowed(t *testing.T) {
	b := &failingBackend{readErr: ErrNotFound, writeErr: errors.New("quota exceeded")}

	assert.NotPanics(t, func() {
		Save(b, "k", []item{{ID: "a"}})
	})
	assert.Equal(t, 1, b.writes)
}

func TestCollection_UpdateWritesThrough(t *testing.T) {
	b := NewMemoryBackend()
	c := NewCollection[item](b, "user-playlists")
	assert.Equal(t, 0, c.Len())

	c.Update(func(items []item) []item {
		return append(items, item{ID: "p1", Name: "Road Trip"})
	})

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []item{{ID: "p1", Name: "Road Trip"}}, Load[item](b, "user-playlists"))

	reopened := NewCollection[item](b, "user-playlists")
	assert.Equal(t, c.All(), reopened.All())
}

func TestCollection_InMemoryStateSurvivesWriteFailure(t *testing.T) {
	b := &failingBackend{readErr: ErrNotFound, writeErr: errors.New("quota exceeded")}
	c := NewCollection[item](b, "liked-songs")

	c.Update(func(items []item) []item {
		return append(items, item{ID: "a"})
	})

	assert.Equal(t, []item{{ID: "a"}}, c.All())
}

func TestCollection_AllReturnsCopy(t *testing.T) {
	c := NewCollection[item](NewMemoryBackend(), "k")
	c.Update(func(items []item) []item { return append(items, item{ID: "a"}) })

	all := c.All()
	all[0].ID = "mutated"

	assert.Equal(t, "a", c.All()[0].ID)
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	_, err = b.Read("liked-songs")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Write("liked-songs", []byte(`[{"id":"a"}]`)))
	data, err := b.Read("liked-songs")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(data))

	_, err = os.Stat(filepath.Join(dir, "liked-songs.json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileBackend_RejectsPathKeys(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, b.Write("../escape", []byte("x")))
	_, err = b.Read("a/b")
	assert.Error(t, err)
}

func TestFileBackend_CollectionRoundTrip(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	want := []item{{ID: "p1", Name: "Bhangra", Songs: []string{"s1"}}}
	Save(b, "user-playlists", want)

	assert.Equal(t, want, Load[item](b, "user-playlists"))
}
