package upload

import (
	"context"

	"github.com/osa030/punjabibox/internal/domain/song"
)

// Rejection codes returned by checks.
const (
	CodeNotAudio      = "not_audio"
	CodeDuplicateSong = "duplicate_song"
	CodeDurationLimit = "duration_limit_exceeded"
)

// Candidate is an upload under inspection.
type Candidate struct {
	Request     Request
	ContentType string  // resolved audio MIME type, set by AudioTypeCheck
	Duration    float64 // seconds, zero when unknown
}

// Result represents the result of a check.
type Result struct {
	Accepted bool
	Code     string
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Check inspects an upload before anything is stored.
type Check interface {
	// Name returns the check name, used in logs.
	Name() string
	Check(ctx context.Context, c *Candidate) Result
}

// Chain executes checks in sequence.
type Chain struct {
	checks []Check
}

// NewChain creates a new check chain.
func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

// Execute runs all checks in sequence and stops at the first rejection.
func (c *Chain) Execute(ctx context.Context, cand *Candidate) Result {
	for _, ch := range c.checks {
		if r := ch.Check(ctx, cand); !r.Accepted {
			return r
		}
	}
	return Accept()
}

// Catalog exposes the songs currently known to the library.
type Catalog interface {
	Songs() []song.Song
}
