package async

import "context"

// Job is a unit of work that can be enqueued onto a Pool.
type Job interface {
	// Run executes the job. A Pool runs jobs with a context that is never
	// cancelled.
	Run(ctx context.Context)
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context)

// Run implements Job.
func (f JobFunc) Run(ctx context.Context) {
	f(ctx)
}
