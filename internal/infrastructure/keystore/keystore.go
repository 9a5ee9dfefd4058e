package keystore

import (
	"errors"
	"os"
	"strings"
)

// ErrNoSecret means no webhook secret is configured for the source.
var ErrNoSecret = errors.New("webhook secret not configured")

// StaticKeyStore resolves webhook signing secrets per source, with a shared
// default. Secrets never leave this package except as byte slices handed to
// the signature gate.
type StaticKeyStore struct {
	defaultSecret []byte
	perSource     map[string][]byte
}

// NewFromEnv builds a keystore from environment variables.
// WEBHOOK_SECRET holds the shared secret; WEBHOOK_SECRET_FOR_SOURCE_<id>
// overrides it for a named webhook source.
func NewFromEnv() *StaticKeyStore {
	ks := &StaticKeyStore{perSource: map[string][]byte{}}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		ks.defaultSecret = []byte(v)
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "WEBHOOK_SECRET_FOR_SOURCE_") {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 || parts[1] == "" {
			continue
		}
		src := strings.TrimPrefix(parts[0], "WEBHOOK_SECRET_FOR_SOURCE_")
		if src != "" {
			ks.perSource[src] = []byte(parts[1])
		}
	}
	return ks
}

// NewStatic builds a keystore with a single shared secret. Test hook.
func NewStatic(secret []byte) *StaticKeyStore {
	return &StaticKeyStore{defaultSecret: secret, perSource: map[string][]byte{}}
}

// SecretForSource returns the signing secret for a webhook source, falling
// back to the shared default when the source has no override.
func (s *StaticKeyStore) SecretForSource(sourceID string) ([]byte, error) {
	if sourceID != "" {
		if secret, ok := s.perSource[sourceID]; ok {
			return secret, nil
		}
	}
	if len(s.defaultSecret) == 0 {
		return nil, ErrNoSecret
	}
	return s.defaultSecret, nil
}
