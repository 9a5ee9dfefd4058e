package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appAudit "github.com/bookflow/bookflow/internal/application/audit"
	"github.com/bookflow/bookflow/internal/domain/audit"
	"github.com/bookflow/bookflow/internal/domain/booking"
	"github.com/bookflow/bookflow/internal/domain/token"
)

// ErrBookingNotFound means the ledger has no row for the transaction. The
// ledger is eventually consistent, so this can be transient right after
// intake; callers surface it as a degraded page, not a hard failure.
var ErrBookingNotFound = errors.New("booking not found in ledger")

// ErrUnexpectedStatus means the ledger row holds a status outside the known
// set, most likely a hand-edited cell. The row is left untouched and needs
// manual attention; the token is not consumed.
var ErrUnexpectedStatus = errors.New("booking has unrecognized status")

// Outcome of a state-machine transition attempt. "Already decided" flows
// are data, not errors: callers branch on the outcome instead of catching
// control-flow failures.
type Outcome string

const (
	OutcomeApplied                 Outcome = "APPLIED"
	OutcomeAlreadyInTargetState    Outcome = "ALREADY_IN_TARGET_STATE"
	OutcomeAlreadyDecidedOtherwise Outcome = "ALREADY_DECIDED_OTHERWISE"
)

// TransitionResult reports what the state machine did and the status the
// ledger holds afterwards.
type TransitionResult struct {
	Outcome       Outcome
	CurrentStatus booking.Status
}

// Applied reports whether this attempt changed the ledger.
func (r TransitionResult) Applied() bool {
	return r.Outcome == OutcomeApplied
}

// RedeemResult is the full result of consuming a decision token.
type RedeemResult struct {
	Token      *token.DecisionToken
	Transition TransitionResult
}

// Notifier receives best-effort decision confirmations.
type Notifier interface {
	ConfirmDecision(ctx context.Context, tok *token.DecisionToken, status booking.Status)
}

// Service issues and redeems one-time decision tokens and drives the
// Pending Review -> Accepted | Denied transition against the ledger.
type Service struct {
	tokens        token.Repository
	ledger        booking.Ledger
	notifier      Notifier
	auditSvc      *appAudit.Service
	minTokenAge   time.Duration
	usedRetention time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// Tunables with their defaults.
const (
	DefaultMinTokenAge   = 2 * time.Second
	DefaultUsedRetention = 24 * time.Hour
)

func NewService(
	tokens token.Repository,
	ledger booking.Ledger,
	notifier Notifier,
	auditSvc *appAudit.Service,
	minTokenAge time.Duration,
	usedRetention time.Duration,
	logger zerolog.Logger,
) *Service {
	if minTokenAge <= 0 {
		minTokenAge = DefaultMinTokenAge
	}
	if usedRetention <= 0 {
		usedRetention = DefaultUsedRetention
	}
	return &Service{
		tokens:        tokens,
		ledger:        ledger,
		notifier:      notifier,
		auditSvc:      auditSvc,
		minTokenAge:   minTokenAge,
		usedRetention: usedRetention,
		logger:        logger.With().Str("service", "decision").Logger(),
		now:           time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Issue creates the accept/deny token pair for a transaction. Tokens carry
// no expiry; they stay valid until the ledger status changes.
func (s *Service) Issue(ctx context.Context, transactionID, customerName, customerEmail string) (token.Pair, error) {
	var pair token.Pair
	createdAt := s.now().UTC()

	for _, kind := range []token.Kind{token.KindAccept, token.KindDeny} {
		value, err := token.New()
		if err != nil {
			return token.Pair{}, fmt.Errorf("token generation: %w", err)
		}
		rec := &token.DecisionToken{
			Token:         value,
			Kind:          kind,
			TransactionID: transactionID,
			CustomerName:  customerName,
			CustomerEmail: customerEmail,
			CreatedAt:     createdAt,
		}
		if err := s.tokens.Put(ctx, rec, 0); err != nil {
			return token.Pair{}, fmt.Errorf("token persistence: %w", err)
		}
		if kind == token.KindAccept {
			pair.Accept = value
		} else {
			pair.Deny = value
		}
	}

	s.logger.Info().Str("transactionId", transactionID).Msg("decision tokens issued")
	return pair, nil
}

// Redeem consumes a token and applies the matching ledger transition. The
// age and reuse gates run before the ledger is touched, so a too-young or
// reused token never reaches it.
func (s *Service) Redeem(ctx context.Context, tok string, kind token.Kind) (*RedeemResult, error) {
	rec, err := s.tokens.Get(ctx, kind, tok)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, token.ErrInvalidToken
	}
	if rec.Used() {
		s.auditSvc.Log(ctx, &audit.Entry{
			EntityType: audit.EntityTypeToken,
			EntityID:   rec.TransactionID,
			Action:     audit.ActionReplayed,
			Actor:      "decision-link",
			Stage:      "redeem",
			Reason:     "token already used",
		})
		return nil, token.ErrTokenAlreadyUsed
	}
	if rec.Age(s.now()) < s.minTokenAge {
		return nil, token.ErrTokenTooYoung
	}

	target := booking.StatusAccepted
	if kind == token.KindDeny {
		target = booking.StatusDenied
	}

	result, err := s.transition(ctx, rec.TransactionID, target)
	if err != nil {
		return nil, err
	}

	// The token is consumed on every decided outcome, including replays of
	// the other decision: both tokens of a pair are void once the booking
	// leaves Pending Review. The record survives briefly for audit
	// correlation, then expires.
	usedAt := s.now().UTC()
	rec.UsedAt = &usedAt
	if err := s.tokens.Put(ctx, rec, s.usedRetention); err != nil {
		s.logger.Warn().Err(err).
			Str("transactionId", rec.TransactionID).
			Msg("failed to mark decision token used")
	}

	if result.Applied() {
		action := audit.ActionAccepted
		if target == booking.StatusDenied {
			action = audit.ActionDenied
		}
		s.auditSvc.Log(ctx, &audit.Entry{
			EntityType: audit.EntityTypeBooking,
			EntityID:   rec.TransactionID,
			Action:     action,
			Actor:      "decision-link",
			Stage:      "transition",
		})
		if s.notifier != nil {
			// Best-effort, spawned after the ledger write committed.
			go s.notifier.ConfirmDecision(context.Background(), rec, result.CurrentStatus)
		}
	}

	return &RedeemResult{Token: rec, Transition: result}, nil
}

// transition applies the optimistic check-then-write against the ledger.
// There is a race window between the read and the write under concurrent
// redemptions; first writer wins, the loser observes the winner's status on
// its own later read. No rollback is attempted.
func (s *Service) transition(ctx context.Context, transactionID string, target booking.Status) (TransitionResult, error) {
	row, err := s.ledger.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return TransitionResult{}, err
	}
	if row == nil {
		return TransitionResult{}, fmt.Errorf("%w: %s", ErrBookingNotFound, transactionID)
	}

	switch {
	case row.Status == target:
		return TransitionResult{Outcome: OutcomeAlreadyInTargetState, CurrentStatus: row.Status}, nil
	case row.Status.Terminal():
		return TransitionResult{Outcome: OutcomeAlreadyDecidedOtherwise, CurrentStatus: row.Status}, nil
	case row.Status != booking.StatusPendingReview:
		// Only Pending Review may be overwritten. Anything else, including
		// an empty status cell, is not clobbered.
		return TransitionResult{}, fmt.Errorf("%w: %q on %s", ErrUnexpectedStatus, row.Status, transactionID)
	}

	if err := s.ledger.UpdateStatus(ctx, row.Number, target); err != nil {
		return TransitionResult{}, err
	}

	s.logger.Info().
		Str("transactionId", transactionID).
		Str("status", string(target)).
		Msg("booking decision applied")
	return TransitionResult{Outcome: OutcomeApplied, CurrentStatus: target}, nil
}
