package decision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAudit "github.com/bookflow/bookflow/internal/application/audit"
	"github.com/bookflow/bookflow/internal/domain/booking"
	"github.com/bookflow/bookflow/internal/domain/token"
	"github.com/bookflow/bookflow/internal/infrastructure/kvstore"
)

// fakeLedger is an in-memory booking.Ledger.
type fakeLedger struct {
	mu      sync.Mutex
	rows    []*booking.Record
	updates int
	findErr error
}

func (f *fakeLedger) AppendBooking(_ context.Context, rec *booking.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeLedger) FindByTransactionID(_ context.Context, transactionID string) (*booking.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i, rec := range f.rows {
		if rec.TransactionID == transactionID {
			return &booking.Row{Number: i + 2, Cells: rec.Row(), Status: rec.Status}, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) UpdateStatus(_ context.Context, rowNumber int, status booking.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := rowNumber - 2
	if idx < 0 || idx >= len(f.rows) {
		return errors.New("row out of range")
	}
	f.rows[idx].Status = status
	f.updates++
	return nil
}

func (f *fakeLedger) statusOf(transactionID string) booking.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.rows {
		if rec.TransactionID == transactionID {
			return rec.Status
		}
	}
	return ""
}

type testEnv struct {
	svc    *Service
	ledger *fakeLedger
	now    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kvstore.NewMemoryStore()
	fl := &fakeLedger{}
	svc := NewService(
		kvstore.NewTokenRepository(store),
		fl,
		nil,
		appAudit.NewService(nil, zerolog.Nop(), nil),
		2*time.Second,
		time.Hour,
		zerolog.Nop(),
	)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	current := &now
	clock := func() time.Time { return *current }
	svc.SetClock(clock)
	store.SetClock(clock)
	return &testEnv{svc: svc, ledger: fl, now: current}
}

func (e *testEnv) seedBooking(t *testing.T, txnID string) token.Pair {
	t.Helper()
	require.NoError(t, e.ledger.AppendBooking(context.Background(), &booking.Record{
		TransactionID: txnID,
		ReceivedAt:    *e.now,
		Status:        booking.StatusPendingReview,
	}))
	pair, err := e.svc.Issue(context.Background(), txnID, "Ada", "ada@example.com")
	require.NoError(t, err)
	return pair
}

func (e *testEnv) advance(d time.Duration) {
	*e.now = e.now.Add(d)
}

func TestIssueCreatesDistinctTokenPair(t *testing.T) {
	env := newTestEnv(t)
	pair := env.seedBooking(t, "txn-1")

	assert.NotEmpty(t, pair.Accept)
	assert.NotEmpty(t, pair.Deny)
	assert.NotEqual(t, pair.Accept, pair.Deny)
}

func TestRedeemAppliesAccept(t *testing.T) {
	env := newTestEnv(t)
	pair := env.seedBooking(t, "txn-1")
	env.advance(5 * time.Second)

	res, err := env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Transition.Outcome)
	assert.Equal(t, booking.StatusAccepted, res.Transition.CurrentStatus)
	assert.True(t, res.Token.Used())
	assert.Equal(t, booking.StatusAccepted, env.ledger.statusOf("txn-1"))
}

func TestRedeemTooYoung(t *testing.T) {
	env := newTestEnv(t)
	pair := env.seedBooking(t, "txn-1")
	env.advance(time.Second)

	_, err := env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
	assert.ErrorIs(t, err, token.ErrTokenTooYoung)
	// the age gate runs before the ledger is touched
	assert.Equal(t, booking.StatusPendingReview, env.ledger.statusOf("txn-1"))
	assert.Zero(t, env.ledger.updates)
}

func TestRedeemTwiceReportsAlreadyUsed(t *testing.T) {
	env := newTestEnv(t)
	pair := env.seedBooking(t, "txn-1")
	env.advance(5 * time.Second)

	_, err := env.svc.Redeem(context.Background(), pair.Deny, token.KindDeny)
	require.NoError(t, err)

	_, err = env.svc.Redeem(context.Background(), pair.Deny, token.KindDeny)
	assert.ErrorIs(t, err, token.ErrTokenAlreadyUsed)
	assert.Equal(t, 1, env.ledger.updates)
}

func TestAcceptAfterDenyIsInformationalNotError(t *testing.T) {
	env := newTestEnv(t)
	pair := env.seedBooking(t, "txn-1")
	env.advance(5 * time.Second)

	_, err := env.svc.Redeem(context.Background(), pair.Deny, token.KindDeny)
	require.NoError(t, err)

	res, err := env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyDecidedOtherwise, res.Transition.Outcome)
	assert.Equal(t, booking.StatusDenied, res.Transition.CurrentStatus)
	assert.Equal(t, booking.StatusDenied, env.ledger.statusOf("txn-1"))
	assert.Equal(t, 1, env.ledger.updates, "losing decision must not mutate the ledger")
}

func TestReplaySameDecisionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	pair := env.seedBooking(t, "txn-1")
	env.advance(5 * time.Second)

	_, err := env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
	require.NoError(t, err)

	// a second accept token pair for the same booking, as if re-issued
	pair2, err := env.svc.Issue(context.Background(), "txn-1", "Ada", "ada@example.com")
	require.NoError(t, err)
	env.advance(5 * time.Second)

	res, err := env.svc.Redeem(context.Background(), pair2.Accept, token.KindAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyInTargetState, res.Transition.Outcome)
	assert.Equal(t, 1, env.ledger.updates, "replay must not write")
}

func TestRedeemLeavesUnrecognizedStatusAlone(t *testing.T) {
	env := newTestEnv(t)
	for _, status := range []booking.Status{"On Hold", ""} {
		txnID := "txn-" + string(status)
		require.NoError(t, env.ledger.AppendBooking(context.Background(), &booking.Record{
			TransactionID: txnID,
			Status:        status,
		}))
		pair, err := env.svc.Issue(context.Background(), txnID, "Ada", "ada@example.com")
		require.NoError(t, err)
		env.advance(5 * time.Second)

		_, err = env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Equal(t, status, env.ledger.statusOf(txnID), "row must not be clobbered")
		assert.Zero(t, env.ledger.updates)

		// the token is not consumed, so once the row is repaired the same
		// link still works
		_, err = env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.NotErrorIs(t, err, token.ErrTokenAlreadyUsed)
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Redeem(context.Background(), "nope", token.KindAccept)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestRedeemMissingBooking(t *testing.T) {
	env := newTestEnv(t)
	pair, err := env.svc.Issue(context.Background(), "ghost", "Ada", "ada@example.com")
	require.NoError(t, err)
	env.advance(5 * time.Second)

	_, err = env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	// the token survives unconsumed so a retry can succeed once the
	// ledger catches up
	_, err = env.svc.Redeem(context.Background(), pair.Accept, token.KindAccept)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
