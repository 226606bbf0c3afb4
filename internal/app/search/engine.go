// Package search provides catalog search with debounced query evaluation.
package search

import (
	"strings"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// DefaultDebounce is the quiet period before a submitted query is evaluated.
const DefaultDebounce = 300 * time.Millisecond

// Result is the outcome of evaluating one query.
// Active is false for the empty query, which means "not searching" and is
// different from an active search that matched nothing.
type Result struct {
	Query  string
	Active bool
	Songs  []song.Song
}

// Filter returns the songs whose title, artist, or album contains query,
// ignoring case. Catalog order is preserved.
func Filter(songs []song.Song, query string) []song.Song {
	lower := strings.ToLower(query)
	result := make([]song.Song, 0)
	for _, s := range songs {
		if s.Matches(lower) {
			result = append(result, s)
		}
	}
	return result
}

// Engine evaluates queries against a catalog snapshot.
type Engine struct {
	mu         sync.Mutex
	catalog    []song.Song
	debounce   time.Duration
	timer      *time.Timer
	generation uint64
	pending    bool
	closed     bool

	resultCh chan Result
}

// NewEngine creates an engine. A non-positive debounce uses DefaultDebounce.
func NewEngine(debounce time.Duration) *Engine {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Engine{
		catalog:  []song.Song{},
		debounce: debounce,
		resultCh: make(chan Result, 16),
	}
}

// Results returns the channel debounced results are published on.
// It is closed by Close.
func (e *Engine) Results() <-chan Result {
	return e.resultCh
}

// SetCatalog replaces the catalog snapshot used by later evaluations.
func (e *Engine) SetCatalog(songs []song.Song) {
	snapshot := make([]song.Song, len(songs))
	copy(snapshot, songs)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.catalog = snapshot
}

// Search evaluates query immediately.
func (e *Engine) Search(query string) Result {
	e.mu.Lock()
	catalog := e.catalog
	e.mu.Unlock()

	return evaluate(catalog, query)
}

func evaluate(catalog []song.Song, query string) Result {
	if query == "" {
		return Result{Query: query, Active: false, Songs: []song.Song{}}
	}
	return Result{Query: query, Active: true, Songs: Filter(catalog, query)}
}

// Submit schedules query for evaluation after the debounce period.
// A later Submit before the period elapses discards the earlier query.
func (e *Engine) Submit(query string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}

	e.generation++
	gen := e.generation
	e.pending = true
	e.timer = time.AfterFunc(e.debounce, func() {
		e.fire(gen, query)
	})
}

// Pending reports whether a submitted query is still waiting to be evaluated.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

func (e *Engine) fire(gen uint64, query string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A stopped timer may still fire if it was already running.
	if e.closed || gen != e.generation {
		return
	}
	e.pending = false
	e.timer = nil

	result := evaluate(e.catalog, query)
	zlog.Debug().Msgf("search: query=%q active=%t matches=%d", query, result.Active, len(result.Songs))

	select {
	case e.resultCh <- result:
	default:
		zlog.Warn().Msgf("search: result channel full, dropping result for %q", query)
	}
}

// Close cancels any pending query and closes the result channel.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.pending = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	close(e.resultCh)
}
