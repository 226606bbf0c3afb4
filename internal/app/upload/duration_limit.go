package upload

import (
	"context"
)

// DurationLimitCheck rejects songs longer than a limit. Songs whose
// duration could not be probed are accepted.
type DurationLimitCheck struct {
	maxMinutes float64
}

// NewDurationLimitCheck creates a new duration limit check. A zero limit accepts everything.
func NewDurationLimitCheck(maxMinutes float64) *DurationLimitCheck {
	return &DurationLimitCheck{maxMinutes: maxMinutes}
}

func (f *DurationLimitCheck) Name() string {
	return "duration_limit_check"
}

func (f *DurationLimitCheck) Check(ctx context.Context, c *Candidate) Result {
	if f.maxMinutes <= 0 || c.Duration <= 0 {
		return Accept()
	}
	if c.Duration/60 > f.maxMinutes {
		return Reject(CodeDurationLimit)
	}
	return Accept()
}
