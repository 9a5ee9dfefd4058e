package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookflow/bookflow/internal/infrastructure/kvstore"
)

// Result of an admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Service is a fixed-window counter over the key-value store. Windows are
// disjoint buckets of fixed size; the standard boundary-burst tradeoff (up
// to twice the limit across a boundary) is accepted for O(1) state.
// Concurrent increments on one bucket can race under the non-transactional
// store; slight over-admission is tolerated rather than serialized.
type Service struct {
	store  kvstore.Store
	limit  int
	window time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store kvstore.Store, limit int, window time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger.With().Str("service", "ratelimit").Logger(),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Admit checks and consumes one slot for the identity key in the current
// window.
func (s *Service) Admit(ctx context.Context, key string) (Result, error) {
	now := s.now()
	windowStart := now.Truncate(s.window)
	resetAt := windowStart.Add(s.window)
	bucketKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart.Unix())

	count := 0
	raw, err := s.store.Get(ctx, bucketKey)
	if err == nil {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			// Malformed counters count as zero: fail open rather than wedge
			// legitimate traffic on a corrupt bucket.
			s.logger.Warn().Str("bucket", bucketKey).Str("value", raw).Msg("malformed rate-limit counter")
		} else {
			count = n
		}
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return Result{}, err
	}

	if count >= s.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	if err := s.store.Put(ctx, bucketKey, strconv.Itoa(count+1), s.window); err != nil {
		return Result{}, err
	}
	return Result{Allowed: true, Remaining: s.limit - count - 1, ResetAt: resetAt}, nil
}
