package queue

import (
	"context"
	"fmt"

	"PricePulse/pkg/logger"
)

// InlineQueue dispatches messages to registered jobs synchronously. It backs
// deployments that run without a Redis queue: publishing blocks until the
// job handler returns.
type InlineQueue struct {
	logger *logger.Logger
	jobs   map[string]Job
}

func NewInlineQueue(lgr *logger.Logger, jobs ...Job) *InlineQueue {
	q := &InlineQueue{
		logger: lgr,
		jobs:   make(map[string]Job, len(jobs)),
	}
	for _, job := range jobs {
		if _, exists := q.jobs[job.Type()]; exists {
			lgr.Warn("job already registered", logger.String("job", job.Name()))
			continue
		}
		q.jobs[job.Type()] = job
	}
	return q
}

// PublishMessage runs the matching job in the caller's goroutine.
func (q *InlineQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	job, ok := q.jobs[msgType]
	if !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	if err := job.Handle(ctx, payload); err != nil {
		q.logger.Error("inline job failed",
			logger.String("job", job.Name()),
			logger.Error(err))
		return err
	}
	return nil
}

var _ QueueService = (*InlineQueue)(nil)
