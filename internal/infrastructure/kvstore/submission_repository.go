package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bookflow/bookflow/internal/domain/submission"
)

const submissionPrefix = "submission:"

// SubmissionRepository implements submission.Repository on a Store.
type SubmissionRepository struct {
	store Store
}

func NewSubmissionRepository(store Store) *SubmissionRepository {
	return &SubmissionRepository{store: store}
}

func (r *SubmissionRepository) Get(ctx context.Context, submissionID string) (*submission.Record, error) {
	raw, err := r.store.Get(ctx, submissionPrefix+submissionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec submission.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// A corrupt record is indistinguishable from never-seen; the guard
		// fails open, the same as the rate limiter does on bad counters.
		return nil, nil
	}
	return &rec, nil
}

func (r *SubmissionRepository) Put(ctx context.Context, rec *submission.Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, submissionPrefix+rec.SubmissionID, string(raw), ttl)
}
