package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func signedLog(t *testing.T, key []byte) *Log {
	t.Helper()
	log := &Log{
		AuditID:    uuid.New(),
		EntityType: EntityTypeBooking,
		EntityID:   "txn-1",
		Action:     ActionAccepted,
		Actor:      "decision-link",
		Stage:      "transition",
		Details:    json.RawMessage(`{"rowNumber":5}`),
		CreatedAt:  time.Now().UTC(),
	}
	sig, err := SignLog(log, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	log.Signature = sig
	return log
}

func TestVerifyLogSignature(t *testing.T) {
	key := []byte("audit-key")
	log := signedLog(t, key)

	ok, err := VerifyLogSignature(log, key)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("valid signature rejected")
	}
}

func TestVerifyLogSignatureDetectsTampering(t *testing.T) {
	key := []byte("audit-key")

	log := signedLog(t, key)
	log.EntityID = "txn-2"
	if ok, _ := VerifyLogSignature(log, key); ok {
		t.Fatal("tampered entity id accepted")
	}

	log = signedLog(t, key)
	log.Action = ActionDenied
	if ok, _ := VerifyLogSignature(log, key); ok {
		t.Fatal("tampered action accepted")
	}

	log = signedLog(t, key)
	if ok, _ := VerifyLogSignature(log, []byte("other-key")); ok {
		t.Fatal("wrong key accepted")
	}
}

func TestVerifyLogSignatureMissing(t *testing.T) {
	log := signedLog(t, []byte("audit-key"))
	log.Signature = nil

	ok, err := VerifyLogSignature(log, []byte("audit-key"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("unsigned log verified")
	}
}
