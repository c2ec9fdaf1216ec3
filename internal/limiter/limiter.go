// Package limiter tracks failed sign-in attempts and places temporary lockouts.
package limiter

import (
	"context"
	"time"
)

// Limiter gates password sign-ins per (identifier, client address).
type Limiter interface {
	// Allow reports whether a sign-in may be attempted and, if not, for how long the lock lasts.
	Allow(ctx context.Context, identifier string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the failure counter.
	Success(ctx context.Context, identifier string, ipHash []byte) error
	// Failure counts a rejected attempt and may lock the pair.
	Failure(ctx context.Context, identifier string, ipHash []byte) (bool, time.Duration, error)
}

// Nop never locks anyone out.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }
func (Nop) Success(context.Context, string, []byte) error                     { return nil }
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
