// Package supabase provides a client for the Supabase REST and Storage APIs
// backing the song catalog.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// Config represents Supabase client configuration.
type Config struct {
	URL        string
	AnonKey    string
	Table      string
	Bucket     string
	Timeout    time.Duration
	MaxRetries uint64
}

// Client talks to one Supabase project.
type Client struct {
	baseURL    string
	anonKey    string
	table      string
	bucket     string
	httpClient *http.Client
	maxRetries uint64
	retryBase  time.Duration
}

// APIError is a non-2xx response from Supabase.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase API error %d: %s", e.Status, e.Message)
}

// errorBody covers both the PostgREST and the Storage error shapes.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Hint    string `json:"hint"`
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, errors.New("supabase URL and anon key are required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, errors.Wrap(err, "invalid supabase URL")
	}
	if cfg.Table == "" {
		cfg.Table = "songs"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "songs"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		table:      cfg.Table,
		bucket:     cfg.Bucket,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryBase:  200 * time.Millisecond,
	}, nil
}

// FetchCatalog returns all songs, newest first.
func (c *Client) FetchCatalog(ctx context.Context) ([]song.Song, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("order", "created_at.desc")

	var records []song.Record
	err := c.do(ctx, true, http.MethodGet, "/rest/v1/"+c.table+"?"+params.Encode(), nil, nil, &records)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch songs")
	}

	songs := make([]song.Song, 0, len(records))
	for _, r := range records {
		songs = append(songs, r.Song())
	}
	zlog.Debug().Msgf("supabase: fetched %d songs", len(songs))
	return songs, nil
}

// InsertSong inserts a song row and returns the stored row.
func (c *Client) InsertSong(ctx context.Context, m song.Metadata) (song.Song, error) {
	body, err := json.Marshal([]song.Metadata{m})
	if err != nil {
		return song.Song{}, errors.Wrap(err, "failed to encode song")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Prefer", "return=representation")

	var records []song.Record
	if err := c.do(ctx, false, http.MethodPost, "/rest/v1/"+c.table, header, body, &records); err != nil {
		return song.Song{}, errors.Wrap(err, "failed to insert song")
	}
	if len(records) != 1 {
		return song.Song{}, errors.Newf("expected 1 inserted row, got %d", len(records))
	}

	zlog.Info().Msgf("supabase: inserted song %s (%s)", records[0].Title, records[0].ID)
	return records[0].Song(), nil
}

// UploadAudio stores data under name in the bucket without overwriting,
// and returns the object path.
func (c *Client) UploadAudio(ctx context.Context, name, contentType string, data []byte) (string, error) {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", "max-age=3600")
	header.Set("x-upsert", "false")

	var resp struct {
		Key string `json:"Key"`
	}
	if err := c.do(ctx, false, http.MethodPost, "/storage/v1/object/"+c.bucket+"/"+escapePath(name), header, data, &resp); err != nil {
		return "", errors.Wrapf(err, "failed to upload %s", name)
	}

	// Key is "<bucket>/<path>".
	path := strings.TrimPrefix(resp.Key, c.bucket+"/")
	if path == "" {
		path = name
	}
	zlog.Info().Msgf("supabase: uploaded %s (%d bytes)", path, len(data))
	return path, nil
}

// PublicURL returns the public HTTPS URL of an object in the bucket.
func (c *Client) PublicURL(path string) string {
	u := c.baseURL + "/storage/v1/object/public/" + c.bucket + "/" + escapePath(path)
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// ListObjects lists the objects at the bucket root.
func (c *Client) ListObjects(ctx context.Context) ([]song.StoredObject, error) {
	body, err := json.Marshal(map[string]any{
		"prefix": "",
		"limit":  1000,
		"offset": 0,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode list request")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	var entries []struct {
		Name      string    `json:"name"`
		UpdatedAt time.Time `json:"updated_at"`
		Metadata  *struct {
			Size     int64  `json:"size"`
			MimeType string `json:"mimetype"`
		} `json:"metadata"`
	}
	if err := c.do(ctx, true, http.MethodPost, "/storage/v1/object/list/"+c.bucket, header, body, &entries); err != nil {
		return nil, errors.Wrap(err, "failed to list objects")
	}

	objects := make([]song.StoredObject, 0, len(entries))
	for _, e := range entries {
		obj := song.StoredObject{Name: e.Name, UpdatedAt: e.UpdatedAt}
		if e.Metadata != nil {
			obj.Size = e.Metadata.Size
			obj.ContentType = e.Metadata.MimeType
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// do sends a request and decodes a 2xx JSON body into out. Reads set
// retryable to retry transport failures, 429 and 5xx responses. Writes are
// sent once, since a lost response may hide a committed insert or upload.
func (c *Client) do(ctx context.Context, retryable bool, method, path string, header http.Header, body []byte, out any) error {
	maxRetries := c.maxRetries
	if !retryable {
		maxRetries = 0
	}
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(c.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("Authorization", "Bearer "+c.anonKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(errors.Wrap(err, "failed to send request"))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(errors.Wrap(err, "failed to read response body"))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(respBody)}
			if isRetryable(resp.StatusCode) {
				zlog.Debug().Msgf("supabase: %s %s returned %d", method, path, resp.StatusCode)
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "failed to parse response")
		}
		return nil
	})
}

func errorMessage(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Message != "" && e.Error != "":
			return e.Error + ": " + e.Message
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	return msg
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// escapePath escapes each segment of an object path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
