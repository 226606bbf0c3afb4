// Package spotify provides a read-only catalog built from Spotify playlists.
// Songs play the 30-second preview clips Spotify exposes for each track.
package spotify

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// previewSeconds is the length of a Spotify preview clip.
const previewSeconds = 30

// Client reads catalog songs from Spotify playlists.
type Client struct {
	client     *spotify.Client
	market     string
	playlists  []string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
	Playlists    []string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}
	if len(cfg.Playlists) == 0 {
		return nil, errors.New("at least one playlist is required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(spotifyauth.ScopePlaylistReadPrivate),
	)

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	market := cfg.Market
	if market == "" {
		market = "IN"
	}

	return &Client{
		client:     spotify.New(httpClient),
		market:     market,
		playlists:  cfg.Playlists,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// FetchCatalog returns the playable tracks of all configured playlists,
// most recently added first. Tracks without a preview clip are skipped.
func (c *Client) FetchCatalog(ctx context.Context) ([]song.Song, error) {
	seen := make(map[string]bool)
	var items []playlistEntry

	for _, p := range c.playlists {
		entries, err := c.playlistEntries(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if seen[e.song.ID] {
				continue
			}
			seen[e.song.ID] = true
			items = append(items, e)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].addedAt.After(items[j].addedAt)
	})

	songs := make([]song.Song, 0, len(items))
	for _, e := range items {
		songs = append(songs, e.song)
	}
	zlog.Debug().Msgf("spotify: %d playable songs from %d playlists", len(songs), len(c.playlists))
	return songs, nil
}

type playlistEntry struct {
	song    song.Song
	addedAt time.Time
}

func (c *Client) playlistEntries(ctx context.Context, playlistURL string) ([]playlistEntry, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var entries []playlistEntry
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get playlist items for %s", playlistID)
		}

		for _, item := range page.Items {
			// Episodes have no Track
			t := item.Track.Track
			if t == nil || t.ID == "" {
				continue
			}
			if t.PreviewURL == "" {
				zlog.Debug().Msgf("spotify: skipping %s, no preview", t.Name)
				continue
			}
			entries = append(entries, convertItem(t, item.AddedAt))
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return entries, nil
}

// convertItem converts a playlist track into a catalog song.
func convertItem(t *spotify.FullTrack, addedAt string) playlistEntry {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var albumArt string
	if len(t.Album.Images) > 0 {
		albumArt = t.Album.Images[0].URL
	}

	added, _ := time.Parse(time.RFC3339, addedAt)
	var dateAdded string
	if !added.IsZero() {
		dateAdded = added.Format(song.DateAddedLayout)
	}

	return playlistEntry{
		song: song.Song{
			ID:              "spotify:" + string(t.ID),
			Title:           t.Name,
			Artist:          strings.Join(artists, ", "),
			Album:           t.Album.Name,
			AlbumCoverURL:   albumArt,
			AudioURL:        t.PreviewURL,
			DurationSeconds: previewSeconds,
			DateAdded:       dateAdded,
		},
		addedAt: added,
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "spotify:playlist:") {
		return strings.TrimPrefix(input, "spotify:playlist:")
	}

	// https://open.spotify.com/playlist/ID or https://open.spotify.com/intl-XX/playlist/ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/playlist/") {
		parts := strings.Split(input, "/playlist/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			return strings.TrimRight(id, "/")
		}
	}

	return input
}
