package submission

import (
	"context"
	"time"
)

// Status of a submission record in the duplicate guard.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

// Record tracks a webhook submission by its caller-supplied identifier.
// Absence of a record means the submission was never seen. Once processed a
// record never reverts to pending; it only disappears when its retention
// window expires.
type Record struct {
	SubmissionID string    `json:"submissionId"`
	Status       Status    `json:"status"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Repository persists submission records.
type Repository interface {
	Get(ctx context.Context, submissionID string) (*Record, error)
	Put(ctx context.Context, rec *Record, ttl time.Duration) error
}
