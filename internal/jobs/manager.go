package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// EnqueueDictionaryImport queues a one-off import. A duplicate within the unique window is not an error.
	EnqueueDictionaryImport(ctx context.Context, trigger string) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	client := asynq.NewClient(redisOpt)

	return &manager{
		client: client,
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) EnqueueDictionaryImport(ctx context.Context, trigger string) (*asynq.TaskInfo, error) {
	task, err := NewDictionaryImportTask(trigger)
	if err != nil {
		return nil, err
	}

	info, err := m.Enqueue(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		m.log.InfoContext(ctx, "dictionary import already queued", slog.String("trigger", trigger))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.log.InfoContext(ctx, "dictionary import queued", slog.String("task_id", info.ID), slog.String("trigger", trigger))
	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
