package imports

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxAttempts is how many times a CV import task runs before it is
// recorded as a failure.
const MaxAttempts = 5

// BackoffSchedule gives the delay before attempt n+1. Attempts beyond the
// schedule reuse the last entry.
var BackoffSchedule = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
}

// BackoffFor returns the delay to wait after the given 1-based attempt
func BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(BackoffSchedule) {
		attempt = len(BackoffSchedule)
	}
	return BackoffSchedule[attempt-1]
}

// Task describes one CV file to import. The temp file is owned by the
// task until it reaches a terminal outcome; retryable failures keep it on
// disk for the next attempt.
type Task struct {
	BatchUID         uuid.UUID `json:"batch_uid"`
	TenantID         uuid.UUID `json:"tenant_id"`
	UserID           uuid.UUID `json:"user_id"`
	TempFilePath     string    `json:"temp_file_path"`
	OriginalFilename string    `json:"original_filename"`
}

// TerminalError wraps a failure that must not be retried: the job is
// recorded as failed immediately regardless of attempts remaining.
type TerminalError struct {
	Reason string
	Err    error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Terminal marks err as non-retryable with a human-readable reason
func Terminal(reason string, err error) error {
	return &TerminalError{Reason: reason, Err: err}
}

// IsTerminal reports whether err carries a TerminalError anywhere in its
// chain
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
