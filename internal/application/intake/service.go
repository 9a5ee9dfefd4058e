package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appAudit "github.com/bookflow/bookflow/internal/application/audit"
	"github.com/bookflow/bookflow/internal/application/decision"
	"github.com/bookflow/bookflow/internal/application/notify"
	"github.com/bookflow/bookflow/internal/application/ratelimit"
	"github.com/bookflow/bookflow/internal/domain/audit"
	"github.com/bookflow/bookflow/internal/domain/booking"
	"github.com/bookflow/bookflow/internal/domain/signature"
	"github.com/bookflow/bookflow/internal/domain/submission"
	"github.com/bookflow/bookflow/internal/infrastructure/keystore"
)

var (
	// ErrDuplicateSubmission means the submission id was fully processed
	// before; the retry is suppressed.
	ErrDuplicateSubmission = errors.New("submission already processed")
	// ErrValidation covers malformed bodies and missing required fields.
	ErrValidation = errors.New("invalid booking payload")
)

// RateLimitedError carries the window reset for the Retry-After header.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return "rate limit exceeded"
}

// Submission is one inbound webhook delivery.
type Submission struct {
	SourceID     string
	SubmissionID string
	Signature    string
	Body         []byte
	RateKey      string
}

// Result of an accepted (or dry-run) submission.
type Result struct {
	TransactionID string
	ReceivedAt    time.Time
	DryRun        bool
}

// Config for the intake service.
type Config struct {
	DryRun       bool
	PendingTTL   time.Duration
	ProcessedTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.PendingTTL <= 0 {
		c.PendingTTL = time.Hour
	}
	if c.ProcessedTTL <= 0 {
		c.ProcessedTTL = 30 * 24 * time.Hour
	}
	return c
}

// Service runs the authenticated, rate-limited, idempotent intake path:
// signature gate, rate limiter, validation, duplicate guard, verified
// ledger append, token issuance, then best-effort notifications.
type Service struct {
	keys        *keystore.StaticKeyStore
	limiter     *ratelimit.Service
	submissions submission.Repository
	ledger      booking.Ledger
	decisionSvc *decision.Service
	notifySvc   *notify.Service
	auditSvc    *appAudit.Service
	cfg         Config
	logger      zerolog.Logger
	now         func() time.Time
	newTxnID    func() string
}

func NewService(
	keys *keystore.StaticKeyStore,
	limiter *ratelimit.Service,
	submissions submission.Repository,
	ledger booking.Ledger,
	decisionSvc *decision.Service,
	notifySvc *notify.Service,
	auditSvc *appAudit.Service,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	return &Service{
		keys:        keys,
		limiter:     limiter,
		submissions: submissions,
		ledger:      ledger,
		decisionSvc: decisionSvc,
		notifySvc:   notifySvc,
		auditSvc:    auditSvc,
		cfg:         cfg.withDefaults(),
		logger:      logger.With().Str("service", "intake").Logger(),
		now:         time.Now,
		newTxnID:    func() string { return uuid.New().String() },
	}
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetTransactionIDFunc overrides transaction id generation. Test hook.
func (s *Service) SetTransactionIDFunc(fn func() string) {
	s.newTxnID = fn
}

// Submit processes one webhook delivery. Authentication, rate limiting and
// duplicate detection short-circuit before any side effect; the submission
// is marked pending before business processing and processed only after the
// ledger write and notification attempts completed.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if sub.SubmissionID == "" {
		return nil, fmt.Errorf("%w: missing submission id", signature.ErrBadSignature)
	}

	secret, err := s.keys.SecretForSource(sub.SourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", signature.ErrBadSignature, err)
	}
	if err := signature.Verify(secret, sub.SubmissionID, sub.Body, sub.Signature); err != nil {
		s.auditSvc.Log(ctx, &audit.Entry{
			EntityType: audit.EntityTypeSubmission,
			EntityID:   sub.SubmissionID,
			Action:     audit.ActionRejected,
			Actor:      sub.SourceID,
			Stage:      "auth",
			Reason:     "signature mismatch",
		})
		return nil, err
	}

	rateKey := sub.RateKey
	if rateKey == "" {
		rateKey = sub.SourceID
	}
	admit, err := s.limiter.Admit(ctx, rateKey)
	if err != nil {
		return nil, err
	}
	if !admit.Allowed {
		return nil, &RateLimitedError{ResetAt: admit.ResetAt}
	}

	req, err := parsePayload(sub.Body)
	if err != nil {
		s.auditSvc.Log(ctx, &audit.Entry{
			EntityType: audit.EntityTypeSubmission,
			EntityID:   sub.SubmissionID,
			Action:     audit.ActionRejected,
			Actor:      sub.SourceID,
			Stage:      "validation",
			Reason:     err.Error(),
		})
		return nil, err
	}
	req.SubmissionID = sub.SubmissionID

	existing, err := s.submissions.Get(ctx, sub.SubmissionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == submission.StatusProcessed {
		s.auditSvc.Log(ctx, &audit.Entry{
			EntityType: audit.EntityTypeSubmission,
			EntityID:   sub.SubmissionID,
			Action:     audit.ActionDuplicate,
			Actor:      sub.SourceID,
			Stage:      "dedup",
		})
		return nil, ErrDuplicateSubmission
	}

	receivedAt := s.now().UTC()
	if s.cfg.DryRun {
		// Dry runs stop before any externally visible effect and leave no
		// pending marker behind, so a later real delivery of the same
		// submission id is processed normally.
		return &Result{ReceivedAt: receivedAt, DryRun: true}, nil
	}

	if err := s.markPending(ctx, sub.SubmissionID, receivedAt); err != nil {
		return nil, err
	}

	rec := &booking.Record{
		TransactionID: s.newTxnID(),
		ReceivedAt:    receivedAt,
		Status:        booking.StatusPendingReview,
		Request:       *req,
	}

	s.auditSvc.Log(ctx, &audit.Entry{
		EntityType: audit.EntityTypeSubmission,
		EntityID:   sub.SubmissionID,
		Action:     audit.ActionReceived,
		Actor:      sub.SourceID,
		Stage:      "intake",
		Details:    map[string]string{"transactionId": rec.TransactionID},
	})

	if err := s.ledger.AppendBooking(ctx, rec); err != nil {
		// The pending marker stays; its TTL bounds how long a failed
		// attempt can shadow the submission id.
		s.logger.Error().Err(err).
			Str("submissionId", sub.SubmissionID).
			Str("transactionId", rec.TransactionID).
			Str("stage", "ledger_append").
			Msg("booking write failed")
		return nil, err
	}

	s.auditSvc.Log(ctx, &audit.Entry{
		EntityType: audit.EntityTypeBooking,
		EntityID:   rec.TransactionID,
		Action:     audit.ActionRecorded,
		Actor:      sub.SourceID,
		Stage:      "ledger_append",
	})

	pair, err := s.decisionSvc.Issue(ctx, rec.TransactionID, req.CustomerName, req.CustomerEmail)
	if err != nil {
		s.logger.Error().Err(err).
			Str("transactionId", rec.TransactionID).
			Str("stage", "token_issue").
			Msg("decision token issuance failed")
		return nil, err
	}

	// Notification failures are logged inside the notify service and never
	// fail the request; the booking row is already durable.
	s.notifySvc.NotifyOwner(ctx, rec, pair)
	s.notifySvc.AcknowledgeCustomer(ctx, rec)

	if err := s.markProcessed(ctx, sub.SubmissionID); err != nil {
		// The booking is durable; a retry would be suppressed only by the
		// ledger's own idempotence, so log loudly.
		s.logger.Error().Err(err).
			Str("submissionId", sub.SubmissionID).
			Str("stage", "mark_processed").
			Msg("failed to mark submission processed")
	}

	return &Result{TransactionID: rec.TransactionID, ReceivedAt: receivedAt}, nil
}

func (s *Service) markPending(ctx context.Context, submissionID string, now time.Time) error {
	return s.submissions.Put(ctx, &submission.Record{
		SubmissionID: submissionID,
		Status:       submission.StatusPending,
		UpdatedAt:    now,
	}, s.cfg.PendingTTL)
}

func (s *Service) markProcessed(ctx context.Context, submissionID string) error {
	return s.submissions.Put(ctx, &submission.Record{
		SubmissionID: submissionID,
		Status:       submission.StatusProcessed,
		UpdatedAt:    s.now().UTC(),
	}, s.cfg.ProcessedTTL)
}
