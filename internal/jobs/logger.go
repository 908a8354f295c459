package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// asynqLogger routes asynq's internal logging into slog.
type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger(log *slog.Logger) *asynqLogger {
	return &asynqLogger{log: log.With(slog.String("component", "asynq"))}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelDebug, fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelInfo, fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelWarn, fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelError, fmt.Sprint(args...))
}

// Fatal logs and exits, as asynq expects.
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Log(context.Background(), slog.LevelError, fmt.Sprint(args...))
	os.Exit(1)
}
