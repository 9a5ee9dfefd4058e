package httpapi

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	appIntake "github.com/bookflow/bookflow/internal/application/intake"
	"github.com/bookflow/bookflow/internal/domain/signature"
	"github.com/bookflow/bookflow/internal/infrastructure/ledger"
)

const (
	headerSignature    = "X-Webhook-Signature"
	headerSubmissionID = "X-Submission-Id"
	headerSourceID     = "X-Source-Id"

	maxBodyBytes = 64 << 10
)

type webhookResponse struct {
	OK            bool   `json:"ok"`
	DryRun        bool   `json:"dryRun"`
	ReceivedAt    string `json:"receivedAt,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) bookingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.webhookError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	sub := appIntake.Submission{
		SourceID:     r.Header.Get(headerSourceID),
		SubmissionID: r.Header.Get(headerSubmissionID),
		Signature:    r.Header.Get(headerSignature),
		Body:         body,
		RateKey:      clientKey(r),
	}
	if sub.RateKey == "" {
		sub.RateKey = sub.SourceID
	}

	result, err := s.intakeSvc.Submit(r.Context(), sub)
	if err != nil {
		var rateErr *appIntake.RateLimitedError
		switch {
		case errors.Is(err, signature.ErrBadSignature):
			s.webhookError(w, http.StatusUnauthorized, "authentication failed")
		case errors.As(err, &rateErr):
			retryAfter := int(time.Until(rateErr.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			s.webhookError(w, http.StatusTooManyRequests, "rate limit exceeded")
		case errors.Is(err, appIntake.ErrDuplicateSubmission):
			s.webhookError(w, http.StatusConflict, "submission already processed")
		case errors.Is(err, appIntake.ErrValidation):
			s.webhookError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrWriteVerification):
			s.webhookError(w, http.StatusBadGateway, "ledger write could not be verified")
		case ledger.IsRemote(err):
			s.logger.Error().Err(err).
				Str("submissionId", sub.SubmissionID).
				Msg("ledger unavailable after retries")
			s.webhookError(w, http.StatusBadGateway, "ledger unavailable")
		default:
			s.logger.Error().Err(err).
				Str("submissionId", sub.SubmissionID).
				Msg("webhook intake failed")
			s.webhookError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(w, http.StatusOK, webhookResponse{
		OK:            true,
		DryRun:        result.DryRun,
		ReceivedAt:    result.ReceivedAt.Format(time.RFC3339),
		TransactionID: result.TransactionID,
	})
}

// clientKey is the rate-limit identity of a request: the client IP without
// the ephemeral port, so requests on separate connections share one bucket.
// RealIP already rewrote RemoteAddr to a bare IP when forwarding headers
// were present; in that case the raw value is used as-is.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) webhookError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, webhookResponse{OK: false, Error: msg})
}
