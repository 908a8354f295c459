package lifecycle

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Proton-105/ruz-auth/internal/health"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) (map[string]string, error)
}

// Probes reports liveness from the process state and readiness from the dependency checks.
// Once shutdown starts readiness fails so that load balancers drain the instance.
type Probes struct {
	checker  *health.Checker
	draining atomic.Bool
	log      *slog.Logger
}

// NewProbes creates a new Probes instance. checker may be nil.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness always reports success while the process serves requests.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails while draining or when a dependency is unreachable.
func (p *Probes) Readiness(ctx context.Context) (map[string]string, error) {
	if p.draining.Load() {
		return nil, ErrDraining
	}
	if p.checker == nil {
		return map[string]string{}, nil
	}
	return p.checker.Ready(ctx)
}

// Drain marks the instance as shutting down.
func (p *Probes) Drain(context.Context) error {
	p.draining.Store(true)
	p.log.Info("readiness switched off")
	return nil
}
