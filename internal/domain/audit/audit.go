package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies what kind of entity an audit record is about.
type EntityType string

const (
	EntityTypeSubmission EntityType = "SUBMISSION"
	EntityTypeBooking    EntityType = "BOOKING"
	EntityTypeToken      EntityType = "TOKEN"
)

// Action identifies what happened to the entity.
type Action string

const (
	ActionReceived  Action = "RECEIVED"
	ActionDuplicate Action = "DUPLICATE"
	ActionRecorded  Action = "RECORDED"
	ActionAccepted  Action = "ACCEPTED"
	ActionDenied    Action = "DENIED"
	ActionReplayed  Action = "REPLAYED"
	ActionRejected  Action = "REJECTED"
)

// Log is a persisted audit record.
type Log struct {
	ID         int64           `json:"id"`
	AuditID    uuid.UUID       `json:"auditId"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     Action          `json:"action"`
	Actor      string          `json:"actor"`
	Stage      string          `json:"stage,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	Signature  []byte          `json:"signature,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Entry is the caller-facing input for a new audit record.
type Entry struct {
	EntityType EntityType
	EntityID   string
	Action     Action
	Actor      string
	Stage      string
	Reason     string
	Details    interface{}
}

// Repository persists audit logs.
type Repository interface {
	Create(ctx context.Context, log *Log) error
	GetByID(ctx context.Context, auditID uuid.UUID) (*Log, error)
}

// NewLog builds a Log from an Entry.
func NewLog(entry *Entry) (*Log, error) {
	log := &Log{
		AuditID:    uuid.New(),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Actor:      entry.Actor,
		Stage:      entry.Stage,
		Reason:     entry.Reason,
		CreatedAt:  time.Now().UTC(),
	}
	if entry.Details != nil {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, err
		}
		log.Details = data
	}
	return log, nil
}
