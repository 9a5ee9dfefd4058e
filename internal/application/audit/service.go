package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bookflow/bookflow/internal/domain/audit"
)

// Service records audit entries for intake and decision events. The
// repository is optional: with none configured, entries are only logged.
type Service struct {
	repo    audit.Repository
	logger  zerolog.Logger
	signKey []byte
}

// NewService creates an audit service. repo may be nil; signKey may be
// empty, in which case records are stored unsigned.
func NewService(repo audit.Repository, logger zerolog.Logger, signKey []byte) *Service {
	return &Service{
		repo:    repo,
		signKey: signKey,
		logger:  logger.With().Str("service", "audit").Logger(),
	}
}

// Log records an audit entry asynchronously. Failures are logged, never
// returned; audit must not fail the request that produced it.
func (s *Service) Log(ctx context.Context, entry *audit.Entry) {
	go func() {
		if err := s.LogSync(context.Background(), entry); err != nil {
			s.logger.Error().Err(err).
				Str("entityType", string(entry.EntityType)).
				Str("entityId", entry.EntityID).
				Str("action", string(entry.Action)).
				Msg("failed to create audit log")
		}
	}()
}

// LogSync records an audit entry synchronously.
func (s *Service) LogSync(ctx context.Context, entry *audit.Entry) error {
	log, err := audit.NewLog(entry)
	if err != nil {
		return fmt.Errorf("failed to build audit log: %w", err)
	}

	if len(s.signKey) > 0 {
		sig, err := audit.SignLog(log, s.signKey)
		if err != nil {
			return fmt.Errorf("failed to sign audit log: %w", err)
		}
		log.Signature = sig
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, log); err != nil {
			return fmt.Errorf("failed to save audit log: %w", err)
		}
	}

	s.logger.Debug().
		Str("auditId", log.AuditID.String()).
		Str("entityType", string(log.EntityType)).
		Str("entityId", log.EntityID).
		Str("action", string(log.Action)).
		Str("stage", log.Stage).
		Msg("audit log created")

	return nil
}
