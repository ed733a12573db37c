package queue

import "context"

// Job is one background task the queue knows how to run.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type this job consumes.
	Type() string

	// Handle runs the job. The payload shape depends on the transport;
	// use ParsePayload to recover the typed form.
	Handle(ctx context.Context, payload interface{}) error
}
