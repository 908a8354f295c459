package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeDictionaryImport = "ruz:dictionary_import"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const (
	importTimeout   = 30 * time.Minute
	importUniqueTTL = time.Hour
	importMaxRetry  = 3
)

// Queues is the weighted queue set the worker serves.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// DictionaryImportPayload records who asked for the import.
type DictionaryImportPayload struct {
	Trigger string `json:"trigger"`
}

func NewDictionaryImportTask(trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(DictionaryImportPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeDictionaryImport, payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(importMaxRetry),
		asynq.Timeout(importTimeout),
		asynq.Unique(importUniqueTTL),
	), nil
}
