package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:playlist:37i9dQZF1DX5cZuAHLNjGz",
			expected: "37i9dQZF1DX5cZuAHLNjGz",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DX5cZuAHLNjGz?si=abc123",
			expected: "37i9dQZF1DX5cZuAHLNjGz",
		},
		{
			name:     "localized URL",
			input:    "https://open.spotify.com/intl-en/playlist/punjabi101/",
			expected: "punjabi101",
		},
		{
			name:     "Plain playlist ID with whitespace",
			input:    "  punjabi101 ",
			expected: "punjabi101",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPlaylistID(tt.input))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit", err: errors.New("Error 429: rate limit exceeded"), expected: true},
		{name: "server error", err: errors.New("503 Service Unavailable"), expected: true},
		{name: "not found", err: errors.New("404 not found"), expected: false},
		{name: "generic error", err: errors.New("invalid playlist"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestRetry(t *testing.T) {
	c := &Client{maxRetries: 3, retryDelay: time.Millisecond}

	calls := 0
	err := c.retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("502 Bad Gateway")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = c.retry(context.Background(), func() error {
		calls++
		return errors.New("400 Bad Request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "client errors are not retried")
}

func TestNew_RequiresCredentialsAndPlaylists(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id", ClientSecret: "secret"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{ClientID: "id", ClientSecret: "secret", RefreshToken: "r"})
	assert.Error(t, err)

	c, err := New(context.Background(), Config{
		ClientID: "id", ClientSecret: "secret", RefreshToken: "r",
		Playlists: []string{"spotify:playlist:abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "IN", c.market)
}

const playlistPage = `{
	"href": "",
	"limit": 100,
	"offset": 0,
	"total": 4,
	"items": [
		{
			"added_at": "2024-01-10T00:00:00Z",
			"track": {
				"type": "track",
				"id": "t1",
				"name": "Lahore",
				"duration_ms": 200000,
				"preview_url": "https://p.scdn.co/mp3-preview/t1",
				"artists": [{"name": "Guru Randhawa"}],
				"album": {"name": "Lahore", "images": [{"url": "https://i.scdn.co/image/t1"}]}
			}
		},
		{
			"added_at": "2024-03-05T00:00:00Z",
			"track": {
				"type": "track",
				"id": "t2",
				"name": "Excuses",
				"duration_ms": 176000,
				"preview_url": "https://p.scdn.co/mp3-preview/t2",
				"artists": [{"name": "AP Dhillon"}, {"name": "Gurinder Gill"}],
				"album": {"name": "Excuses", "images": []}
			}
		},
		{
			"added_at": "2024-02-01T00:00:00Z",
			"track": {
				"type": "track",
				"id": "t3",
				"name": "No Preview",
				"duration_ms": 100000,
				"preview_url": "",
				"artists": [{"name": "Someone"}],
				"album": {"name": "X", "images": []}
			}
		}
	]
}`

func TestFetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playlists/punjabi101/tracks", r.URL.Path)
		assert.Equal(t, "IN", r.URL.Query().Get("market"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, playlistPage)
	}))
	defer server.Close()

	c := &Client{
		client:     spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/")),
		market:     "IN",
		playlists:  []string{"https://open.spotify.com/playlist/punjabi101", "spotify:playlist:punjabi101"},
		maxRetries: 1,
	}

	songs, err := c.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2, "preview-less tracks and duplicates are dropped")

	assert.Equal(t, "spotify:t2", songs[0].ID, "most recently added first")
	assert.Equal(t, "AP Dhillon, Gurinder Gill", songs[0].Artist)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/t2", songs[0].AudioURL)
	assert.Equal(t, "Mar 5, 2024", songs[0].DateAdded)
	assert.Empty(t, songs[0].AlbumCoverURL)

	assert.Equal(t, "spotify:t1", songs[1].ID)
	assert.Equal(t, "https://i.scdn.co/image/t1", songs[1].AlbumCoverURL)
	assert.Equal(t, float64(previewSeconds), songs[1].DurationSeconds)
}
