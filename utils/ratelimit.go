package utils

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"terarelay/internal"
)

// TokenBucketLimiter implements bandwidth limiting for single-stream
// fetches using a token bucket.
type TokenBucketLimiter struct {
	rate       int64
	bucket     int64
	maxBucket  int64
	lastUpdate time.Time
	mutex      sync.Mutex
}

// NewTokenBucketLimiter creates a limiter. A non-positive rate disables
// limiting entirely.
func NewTokenBucketLimiter(bytesPerSecond int64) internal.RateLimiter {
	return &TokenBucketLimiter{
		rate:       bytesPerSecond,
		bucket:     bytesPerSecond,
		maxBucket:  bytesPerSecond,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until n bytes may be consumed.
func (r *TokenBucketLimiter) Wait(ctx context.Context, n int) error {
	r.mutex.Lock()
	if r.rate <= 0 {
		r.mutex.Unlock()
		return nil
	}

	now := time.Now()
	elapsed := now.Sub(r.lastUpdate)
	r.lastUpdate = now

	r.bucket += int64(elapsed.Seconds() * float64(r.rate))
	if r.bucket > r.maxBucket {
		r.bucket = r.maxBucket
	}

	needed := int64(n)
	if r.bucket >= needed {
		r.bucket -= needed
		r.mutex.Unlock()
		return nil
	}

	deficit := needed - r.bucket
	r.bucket = 0
	r.mutex.Unlock()

	waitTime := time.Duration(float64(deficit) / float64(r.rate) * float64(time.Second))
	select {
	case <-time.After(waitTime):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetRate updates the rate limit.
func (r *TokenBucketLimiter) SetRate(bytesPerSecond int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.rate = bytesPerSecond
	r.maxBucket = bytesPerSecond
	if r.bucket > r.maxBucket {
		r.bucket = r.maxBucket
	}
}

// ParseRateLimit parses human-readable rate strings like "5M" or "500K"
// into bytes per second. An empty string means unlimited.
func ParseRateLimit(rateStr string) (int64, error) {
	rateStr = strings.TrimSpace(rateStr)
	if rateStr == "" {
		return 0, nil
	}

	if val, err := strconv.ParseInt(rateStr, 10, 64); err == nil {
		if val < 0 {
			return 0, fmt.Errorf("rate cannot be negative: %d", val)
		}
		return val, nil
	}

	upper := strings.ToUpper(rateStr)
	var numStr, suffix string
	switch {
	case strings.HasSuffix(upper, "KB"), strings.HasSuffix(upper, "MB"),
		strings.HasSuffix(upper, "GB"), strings.HasSuffix(upper, "TB"):
		numStr = rateStr[:len(rateStr)-2]
		suffix = upper[len(upper)-2 : len(upper)-1]
	default:
		if len(rateStr) < 2 {
			return 0, fmt.Errorf("invalid rate format: %s", rateStr)
		}
		numStr = rateStr[:len(rateStr)-1]
		suffix = upper[len(upper)-1:]
	}

	base, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value in rate: %s", numStr)
	}
	if base < 0 {
		return 0, fmt.Errorf("rate cannot be negative: %s", rateStr)
	}

	var multiplier int64
	switch suffix {
	case "B":
		multiplier = 1
	case "K":
		multiplier = 1024
	case "M":
		multiplier = 1024 * 1024
	case "G":
		multiplier = 1024 * 1024 * 1024
	case "T":
		multiplier = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unsupported rate suffix: %s (use B, K, M, G or T)", suffix)
	}

	return int64(base * float64(multiplier)), nil
}
