// Package ratelimit throttles the OTP endpoints per client address and per phone number.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil {
		return 1
	}
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts hits for a key within a sliding window. An error means the backend
// failed; a rejected request is reported through Result.Allowed.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// IPKey is the limiter key of a client address.
func IPKey(ip string) string {
	return "ip:" + ip
}

// PhoneKey is the limiter key of a phone number receiving codes.
func PhoneKey(phone string) string {
	return "phone:" + strings.TrimSpace(phone)
}
