package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	importCron     string
	log            *slog.Logger
}

// NewScheduler builds a scheduler that enqueues the dictionary import on importCron.
func NewScheduler(redisOpt asynq.RedisConnOpt, importCron string, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		importCron:     importCron,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewDictionaryImportTask("scheduler")
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.importCron, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered dictionary import task", slog.String("cron", s.importCron))

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")

	s.asynqScheduler.Shutdown()
}
