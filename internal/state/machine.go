package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "user:status:lock:%d"
	lockTTL            = 5 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested status transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateLocked indicates that a concurrent operation already holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe status transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the status controller.
type StateMachine interface {
	GetState(ctx context.Context, userID int64) (State, error)
	// TransitionTo moves the user to newState. It returns true when this call made the
	// change and false when the user already was in newState.
	TransitionTo(ctx context.Context, userID int64, newState State) (bool, error)
}

// machine is a concrete implementation of StateMachine backed by Storage and optional Redis locking.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
}

// NewStateMachine creates a status controller. redisClient may be nil; the storage
// compare-and-set still guarantees a single winner.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
	}
}

// GetState proxies to the underlying storage implementation.
func (m *machine) GetState(ctx context.Context, userID int64) (State, error) {
	return m.storage.GetStatus(ctx, userID)
}

// TransitionTo changes the status if the transition is allowed, guarded by a lock.
func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State) (bool, error) {
	if err := m.lock(ctx, userID); err != nil {
		return false, err
	}
	defer m.unlock(ctx, userID)

	current, err := m.storage.GetStatus(ctx, userID)
	if err != nil {
		return false, err
	}

	if current == newState {
		return false, nil
	}

	if !IsTransitionAllowed(current, newState) {
		if m.log != nil {
			m.log.Warn("invalid state transition", "user_id", userID, "from", current, "to", newState)
		}
		return false, ErrInvalidTransition
	}

	changed, err := m.storage.CompareAndSetStatus(ctx, userID, current, newState)
	if err != nil {
		return false, err
	}

	if changed {
		transitionRecorder(string(current), string(newState))
	}

	return changed, nil
}

func (m *machine) lock(ctx context.Context, userID int64) error {
	if m.redisClient == nil {
		return nil
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	acquired, err := m.redisClient.SetNX(ctx, key, 1, lockTTL).Result()
	if err != nil {
		// the storage compare-and-set stays authoritative without the lock
		if m.log != nil {
			m.log.Warn("failed to acquire user status lock, continuing without it", "user_id", userID, "error", err)
		}
		return nil
	}

	if !acquired {
		if m.log != nil {
			m.log.Warn("user status lock already held", "user_id", userID)
		}
		return ErrStateLocked
	}

	return nil
}

func (m *machine) unlock(ctx context.Context, userID int64) {
	if m.redisClient == nil {
		return
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	if err := m.redisClient.Del(context.WithoutCancel(ctx), key).Err(); err != nil && m.log != nil {
		m.log.Error("failed to release user status lock", "user_id", userID, "error", err)
	}
}
