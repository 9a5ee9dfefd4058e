package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bookflow/bookflow/internal/domain/token"
)

// TokenRepository implements token.Repository on a Store. Accept and deny
// tokens live under distinct namespaces so a token presented against the
// wrong decision kind never resolves.
type TokenRepository struct {
	store Store
}

func NewTokenRepository(store Store) *TokenRepository {
	return &TokenRepository{store: store}
}

func tokenKey(kind token.Kind, tok string) string {
	return "token:" + string(kind) + ":" + tok
}

func (r *TokenRepository) Get(ctx context.Context, kind token.Kind, tok string) (*token.DecisionToken, error) {
	raw, err := r.store.Get(ctx, tokenKey(kind, tok))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec token.DecisionToken
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

func (r *TokenRepository) Put(ctx context.Context, rec *token.DecisionToken, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tokenKey(rec.Kind, rec.Token), string(raw), ttl)
}
