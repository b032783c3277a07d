package internal

import "context"

// Strategy is one way of turning a share link into a direct download URL.
// Implementations return a soft ResolveError to let the chain move on, or
// a hard one to stop it. A strategy is attempted at most once per request.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, link ShareLink) (*ResolvedDownload, error)
}

// RateLimiter controls bandwidth usage during fetches.
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}
