package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Prefix identifies the signature scheme in the webhook header value.
const Prefix = "sha256="

// hexLen is the length of a hex-encoded SHA-256 digest.
const hexLen = sha256.Size * 2

// ErrBadSignature is returned for missing, malformed, or mismatched
// signatures. It is distinguishable from downstream processing errors so the
// API layer can map it to 401.
var ErrBadSignature = errors.New("invalid webhook signature")

// Sign computes the keyed hash over body || submissionID and returns it in
// header form ("sha256=<hex>").
func Sign(secret []byte, submissionID string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	_, _ = mac.Write([]byte(submissionID))
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature for the raw body and submission id and
// compares it against the provided header value in constant time. Malformed
// values fail closed before any MAC computation.
func Verify(secret []byte, submissionID string, body []byte, provided string) error {
	if !strings.HasPrefix(provided, Prefix) {
		return ErrBadSignature
	}
	hexDigest := strings.TrimPrefix(provided, Prefix)
	if len(hexDigest) != hexLen {
		return ErrBadSignature
	}
	given, err := hex.DecodeString(hexDigest)
	if err != nil {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	_, _ = mac.Write([]byte(submissionID))
	if !hmac.Equal(given, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}
