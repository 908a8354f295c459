// Package idempotency replays stored responses for repeated requests carrying the same key.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const lockTTL = time.Minute

var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Response is a captured HTTP response.
type Response struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Operation produces the response to remember.
type Operation func(ctx context.Context) (*Response, error)

type Result struct {
	Response  *Response
	FromCache bool
}

type Manager interface {
	// Execute runs fn once per key within ttl and replays its response afterwards.
	// Server errors are not stored, so a retry runs fn again.
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	if cached, err := m.cached(ctx, key); err != nil || cached != nil {
		return cached, err
	}

	locked, err := m.store.Lock(ctx, key, lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		// the holder may have finished between the read and the lock attempt
		if cached, err := m.cached(ctx, key); err != nil || cached != nil {
			return cached, err
		}
		return nil, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	resp, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if resp != nil && resp.StatusCode < 500 {
		if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, Response: resp}, ttl); err != nil {
			m.log.Error("failed to store idempotent response", slog.String("key", key), slog.Any("error", err))
		}
	}

	return &Result{Response: resp}, nil
}

func (m *manager) cached(ctx context.Context, key string) (*Result, error) {
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != StatusCompleted {
		return nil, nil
	}

	return &Result{Response: record.Response, FromCache: true}, nil
}
