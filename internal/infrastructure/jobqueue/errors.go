package jobqueue

import "errors"

var (
	// ErrQueueNotRunning is returned when submitting to a stopped queue
	ErrQueueNotRunning = errors.New("job queue is not running")

	// ErrQueueFull is returned when the job queue is at capacity
	ErrQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid job queue configuration")
)
