// Package handlers processes queued background tasks.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/ruz-auth/internal/jobs"
	"github.com/Proton-105/ruz-auth/internal/ruz"
)

// Importer refreshes the code dictionary.
type Importer interface {
	Import(ctx context.Context) (ruz.Report, error)
}

type DictionaryImportHandler struct {
	importer Importer
	log      *slog.Logger
}

func NewDictionaryImportHandler(importer Importer, log *slog.Logger) *DictionaryImportHandler {
	if log == nil {
		log = slog.Default()
	}

	return &DictionaryImportHandler{importer: importer, log: log}
}

// ProcessTask runs one import. It fails, and so is retried, only when no source succeeded.
func (h *DictionaryImportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.DictionaryImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "dictionary import: failed to decode payload",
			slog.String("task_type", t.Type()),
			slog.Any("error", err),
		)
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	report, err := h.importer.Import(ctx)
	if err != nil {
		return fmt.Errorf("dictionary import: %w", err)
	}

	failed := report.Failed()
	h.log.InfoContext(ctx, "dictionary import finished",
		slog.String("trigger", payload.Trigger),
		slog.Int("imported", report.Imported()),
		slog.Int("seeded", report.Seeded),
		slog.Int("failed_sources", len(failed)),
	)

	if len(failed) > 0 && len(failed) == len(report.Sources) {
		return fmt.Errorf("dictionary import: all %d sources failed: %w", len(failed), failed[0].Err)
	}

	return nil
}
