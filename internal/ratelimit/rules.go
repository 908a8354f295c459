package ratelimit

import (
	"errors"
	"time"

	"github.com/Proton-105/ruz-auth/pkg/config"
)

// Rules exposes configured limits.
type Rules struct {
	config    config.RateLimitConfig
	whitelist map[string]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	wl := make(map[string]struct{}, len(cfg.Whitelist))
	for _, ip := range cfg.Whitelist {
		wl[ip] = struct{}{}
	}

	return &Rules{config: cfg, whitelist: wl}
}

// Enabled reports whether limiting is switched on.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if requests from ip bypass rate limits.
func (r *Rules) IsWhitelisted(ip string) bool {
	_, ok := r.whitelist[ip]
	return ok
}

// GlobalLimit is the per-address limit applied to every /auth request.
func (r *Rules) GlobalLimit() (int, time.Duration, error) {
	return parseRule(r.config.Global)
}

// OTPLimit is the per-phone limit applied to requests that dispatch or check a code.
func (r *Rules) OTPLimit() (int, time.Duration, error) {
	return parseRule(r.config.OTP)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		return 0, 0, errors.New("window duration must be positive")
	}
	return rule.Limit, window, nil
}
