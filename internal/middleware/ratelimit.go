package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/internal/ratelimit"
)

// RateLimitMiddleware enforces the per-address limit on every request and exposes the
// per-phone check used by endpoints that send or check a code.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
	now     func() time.Time
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
		now:     time.Now,
	}
}

// Handle returns a gin middleware limiting requests per client address.
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.active() {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if m.rules.IsWhitelisted(ip) {
			c.Next()
			return
		}

		limit, window, err := m.rules.GlobalLimit()
		if err != nil {
			m.log.Error("failed to load global rate limit", slog.Any("error", err))
			c.Next()
			return
		}

		if retryAfter, limited := m.check(c.Request.Context(), ratelimit.IPKey(ip), limit, window); limited {
			m.log.Warn("rate limit exceeded", slog.String("client_ip", ip))
			AbortRateLimited(c, retryAfter)
			return
		}

		c.Next()
	}
}

// CheckPhone counts one code request for phone and reports whether it is over the limit,
// with the seconds to wait.
func (m *RateLimitMiddleware) CheckPhone(ctx context.Context, phone string) (int, bool) {
	if !m.active() || phone == "" {
		return 0, false
	}

	limit, window, err := m.rules.OTPLimit()
	if err != nil {
		m.log.Error("failed to load otp rate limit", slog.Any("error", err))
		return 0, false
	}

	retryAfter, limited := m.check(ctx, ratelimit.PhoneKey(phone), limit, window)
	if limited {
		m.log.Warn("otp rate limit exceeded", slog.String("phone", phone))
	}

	return retryAfter, limited
}

func (m *RateLimitMiddleware) active() bool {
	return m != nil && m.limiter != nil && m.rules.Enabled()
}

// check fails open: a limiter backend error lets the request through.
func (m *RateLimitMiddleware) check(ctx context.Context, key string, limit int, window time.Duration) (int, bool) {
	result, err := m.limiter.Check(ctx, key, limit, window)
	if err != nil {
		m.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return 0, false
	}
	if result.Allowed {
		return 0, false
	}

	return result.RetryAfter(m.now()), true
}

// AbortRateLimited writes the 429 envelope with a Retry-After header.
func AbortRateLimited(c *gin.Context, retryAfter int) {
	appErr := apperrors.NewRateLimitError(retryAfter)

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"status":  http.StatusTooManyRequests,
		"message": appErr.UserMessage,
	})
}
