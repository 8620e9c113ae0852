package imports

import (
	"context"

	"github.com/google/uuid"
)

// Outcome classifies one processed file
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Entry is the per-file result appended to the batch-progress store
type Entry struct {
	Outcome    Outcome   `json:"outcome"`
	Filename   string    `json:"filename"`
	ContactUID uuid.UUID `json:"contact_uid,omitempty"`
	Name       string    `json:"name,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Progress is the aggregated view of a batch's entries
type Progress struct {
	Success []Entry `json:"success"`
	Failed  []Entry `json:"failed"`
	Skipped []Entry `json:"skipped"`
}

// Counts returns the per-outcome totals
func (p Progress) Counts() (success, failed, skipped int) {
	return len(p.Success), len(p.Failed), len(p.Skipped)
}

// ProgressStore accumulates per-file entries for a batch. Append must be
// atomic with respect to concurrent appenders for the same batch: results
// from parallel workers may never overwrite each other.
type ProgressStore interface {
	Append(ctx context.Context, batchUID uuid.UUID, entry Entry) error
	Get(ctx context.Context, batchUID uuid.UUID) (Progress, error)
}
