// Package limiter throttles clients that keep presenting bad credentials.
//
// Clients are keyed by a hash of their address; raw addresses are never
// stored. Failures are counted in a sliding window and reaching the limit
// blocks the client for a fixed period.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks authentication failures per client.
type Limiter interface {
	// Allow reports whether the client may try again and, if not, for how long it is blocked.
	Allow(ctx context.Context, ipHash []byte) (bool, time.Duration, error)
	// Failure records a rejected credential; it reports whether the client is now blocked.
	Failure(ctx context.Context, ipHash []byte) (bool, time.Duration, error)
}

// Settings configure the window and the lockout.
type Settings struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
