package ingest

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with jitter.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:        500 * time.Millisecond,
		Max:         30 * time.Second,
		MaxAttempts: 8,
	}
}

// Delay returns the wait before retrying after the given 1-based attempt.
// The delay doubles per attempt up to Max, with up to 25% random jitter
// so parallel workers hitting the same rate limit spread out.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base << (attempt - 1)
	if d > b.Max || d <= 0 {
		d = b.Max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}
