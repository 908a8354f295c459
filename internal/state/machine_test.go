package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errStorageFailure = errors.New("storage error")

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetStatus(ctx context.Context, userID int64) (State, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(State), args.Error(1)
}

func (m *mockStorage) CompareAndSetStatus(ctx context.Context, userID int64, from, to State) (bool, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Bool(0), args.Error(1)
}

func TestStateMachine_TransitionTo(t *testing.T) {
	ctx := context.Background()
	userID := int64(42)
	log := testLogger()

	testCases := []struct {
		name          string
		setupMocks    func(ms *mockStorage)
		newState      State
		expectChanged bool
		expectedErr   error
	}{
		{
			name: "pending user activated",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetStatus", mock.Anything, userID).Return(StatePending, nil).Once()
				ms.On("CompareAndSetStatus", mock.Anything, userID, StatePending, StateActive).Return(true, nil).Once()
			},
			newState:      StateActive,
			expectChanged: true,
		},
		{
			name: "already active is a no-op",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetStatus", mock.Anything, userID).Return(StateActive, nil).Once()
			},
			newState:      StateActive,
			expectChanged: false,
		},
		{
			name: "lost race reports no change",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetStatus", mock.Anything, userID).Return(StatePending, nil).Once()
				ms.On("CompareAndSetStatus", mock.Anything, userID, StatePending, StateActive).Return(false, nil).Once()
			},
			newState:      StateActive,
			expectChanged: false,
		},
		{
			name: "invalid transition",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetStatus", mock.Anything, userID).Return(StateActive, nil).Once()
			},
			newState:    StatePending,
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "storage failure",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetStatus", mock.Anything, userID).Return(State(""), errStorageFailure).Once()
			},
			newState:    StateActive,
			expectedErr: errStorageFailure,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			fsm := NewStateMachine(ms, log, nil)
			changed, err := fsm.TransitionTo(ctx, userID, tc.newState)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectChanged, changed)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestStateMachine_RecordsTransitions(t *testing.T) {
	var recorded []string
	RegisterTransitionRecorder(func(from, to string) {
		recorded = append(recorded, from+"->"+to)
	})
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	storage := newInMemoryStorage(0)
	storage.statuses[1] = StatePending
	fsm := NewStateMachine(storage, testLogger(), nil)

	changed, err := fsm.TransitionTo(context.Background(), 1, StateActive)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = fsm.TransitionTo(context.Background(), 1, StateActive)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{"pending->active"}, recorded)
}

func TestStateMachine_Lock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := newInMemoryStorage(100 * time.Millisecond)
	storage.statuses[77] = StatePending
	fsm := NewStateMachine(storage, testLogger(), client)

	ctx := context.Background()
	userID := int64(77)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fsm.TransitionTo(ctx, userID, StateActive)
			errCh <- err
		}()
	}

	wg.Wait()
	close(errCh)

	var success, locked int
	for err := range errCh {
		if err == nil {
			success++
			continue
		}

		if errors.Is(err, ErrStateLocked) {
			locked++
			continue
		}

		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, locked)
	assert.Equal(t, StateActive, storage.statuses[userID])
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type inMemoryStorage struct {
	mu       sync.Mutex
	statuses map[int64]State
	delay    time.Duration
}

func newInMemoryStorage(delay time.Duration) *inMemoryStorage {
	return &inMemoryStorage{
		statuses: make(map[int64]State),
		delay:    delay,
	}
}

func (s *inMemoryStorage) GetStatus(ctx context.Context, userID int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statuses[userID], nil
}

func (s *inMemoryStorage) CompareAndSetStatus(ctx context.Context, userID int64, from, to State) (bool, error) {
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statuses[userID] != from {
		return false, nil
	}
	s.statuses[userID] = to
	return true, nil
}
