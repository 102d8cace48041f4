// Package quota meters analysis requests per client identity within a
// rolling window. The durable backend is SQLite; when it is unreachable or
// not configured, an in-process store takes over with identical semantics,
// accepting that counts reset on restart.
package quota

import (
	"context"
	"time"
)

// Defaults for the free tier.
const (
	FreeTierLimit = 5
	Window        = 24 * time.Hour
)

// Admission is the result of one admission check.
type Admission struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store admits or denies requests. Admit atomically increments the
// counter for clientKey and compares it against tierLimit; the first
// increment of a window starts the window clock. Peek reports the same
// state without consuming an admission; its Allowed field says whether
// the next Admit would pass.
type Store interface {
	Admit(ctx context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error)
	Peek(ctx context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error)
	Close() error
}

// freshAdmission describes a client with no active window. ResetAt stays
// zero until a first admission starts the clock.
func freshAdmission(tierLimit int) *Admission {
	return &Admission{Allowed: true, Remaining: tierLimit}
}

// admission computes the shared allowed/remaining/reset math from a
// post-increment count and window start.
func admission(count, tierLimit int, windowStart time.Time, window time.Duration) *Admission {
	remaining := tierLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Admission{
		Allowed:   count <= tierLimit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(window),
	}
}
