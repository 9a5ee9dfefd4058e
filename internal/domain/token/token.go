package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Kind distinguishes the two tokens issued per transaction.
type Kind string

const (
	KindAccept Kind = "accept"
	KindDeny   Kind = "deny"
)

var (
	// ErrInvalidToken means no record exists under the presented token.
	ErrInvalidToken = errors.New("unknown decision token")
	// ErrTokenAlreadyUsed means the token was redeemed before.
	ErrTokenAlreadyUsed = errors.New("decision token already used")
	// ErrTokenTooYoung means the token was presented before its minimum age
	// elapsed (link prefetchers, accidental double-clicks at send time).
	ErrTokenTooYoung = errors.New("decision token not yet active")
)

// DecisionToken is a single-use credential binding a transaction to one
// decision outcome.
type DecisionToken struct {
	Token         string     `json:"token"`
	Kind          Kind       `json:"kind"`
	TransactionID string     `json:"transactionId"`
	CustomerName  string     `json:"customerName"`
	CustomerEmail string     `json:"customerEmail"`
	CreatedAt     time.Time  `json:"createdAt"`
	UsedAt        *time.Time `json:"usedAt,omitempty"`
}

// Used reports whether the token was already redeemed.
func (t *DecisionToken) Used() bool {
	return t.UsedAt != nil
}

// Age of the token at the given instant.
func (t *DecisionToken) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// Pair holds the two tokens issued for one transaction.
type Pair struct {
	Accept string
	Deny   string
}

// Repository persists decision tokens. A zero ttl means no expiry.
type Repository interface {
	Get(ctx context.Context, kind Kind, tok string) (*DecisionToken, error)
	Put(ctx context.Context, rec *DecisionToken, ttl time.Duration) error
}

// tokenBytes of random material per token. The value is not derived from the
// transaction and cannot be reversed to it.
const tokenBytes = 32

// New returns a fresh high-entropy token value.
func New() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
