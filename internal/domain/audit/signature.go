package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"
)

type signaturePayload struct {
	AuditID    string `json:"auditId"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	Stage      string `json:"stage,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Details    string `json:"details,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func buildSignaturePayload(log *Log) signaturePayload {
	payload := signaturePayload{
		AuditID:    log.AuditID.String(),
		EntityType: string(log.EntityType),
		EntityID:   log.EntityID,
		Action:     string(log.Action),
		Actor:      log.Actor,
		Stage:      log.Stage,
		Reason:     log.Reason,
		CreatedAt:  log.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(log.Details) > 0 {
		payload.Details = base64.StdEncoding.EncodeToString(log.Details)
	}
	return payload
}

// SignLog generates an HMAC signature for the audit log.
func SignLog(log *Log, key []byte) ([]byte, error) {
	payload := buildSignaturePayload(log)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(data)
	return mac.Sum(nil), nil
}

// VerifyLogSignature verifies the HMAC signature for the audit log.
func VerifyLogSignature(log *Log, key []byte) (bool, error) {
	if len(log.Signature) == 0 {
		return false, nil
	}
	expected, err := SignLog(log, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, log.Signature), nil
}
