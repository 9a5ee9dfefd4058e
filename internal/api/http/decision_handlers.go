package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	appDecision "github.com/bookflow/bookflow/internal/application/decision"
	"github.com/bookflow/bookflow/internal/domain/booking"
	"github.com/bookflow/bookflow/internal/domain/token"
)

func (s *Server) acceptDecision(w http.ResponseWriter, r *http.Request) {
	s.redeemDecision(w, r, token.KindAccept)
}

func (s *Server) denyDecision(w http.ResponseWriter, r *http.Request) {
	s.redeemDecision(w, r, token.KindDeny)
}

func (s *Server) redeemDecision(w http.ResponseWriter, r *http.Request, kind token.Kind) {
	tok := chi.URLParam(r, "token")
	if tok == "" {
		renderPage(w, http.StatusBadRequest, invalidTokenPage())
		return
	}

	result, err := s.decisionSvc.Redeem(r.Context(), tok, kind)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidToken):
			renderPage(w, http.StatusBadRequest, invalidTokenPage())
		case errors.Is(err, token.ErrTokenAlreadyUsed):
			renderPage(w, http.StatusGone, tokenUsedPage())
		case errors.Is(err, token.ErrTokenTooYoung):
			renderPage(w, http.StatusTooEarly, cooldownPage())
		case errors.Is(err, appDecision.ErrBookingNotFound):
			// The ledger can lag the intake write; tell the owner to retry
			// the link rather than fail hard.
			renderPage(w, http.StatusOK, bookingMissingPage())
		case errors.Is(err, appDecision.ErrUnexpectedStatus):
			renderPage(w, http.StatusConflict, manualReviewPage())
		default:
			s.logger.Error().Err(err).Str("kind", string(kind)).Msg("decision redemption failed")
			renderPage(w, http.StatusInternalServerError, errorPage())
		}
		return
	}

	switch result.Transition.Outcome {
	case appDecision.OutcomeApplied:
		renderPage(w, http.StatusOK, decisionAppliedPage(result.Transition.CurrentStatus))
	default:
		renderPage(w, http.StatusOK, alreadyDecidedPage(result.Transition.CurrentStatus))
	}
}

func decisionAppliedPage(status booking.Status) pageData {
	if status == booking.StatusAccepted {
		return pageData{
			Title:   "Booking accepted",
			Heading: "Booking accepted",
			Message: "The customer will receive a confirmation email shortly.",
			Tone:    "ok",
		}
	}
	return pageData{
		Title:   "Booking denied",
		Heading: "Booking denied",
		Message: "The customer will be notified that the booking was declined.",
		Tone:    "ok",
	}
}

func alreadyDecidedPage(status booking.Status) pageData {
	return pageData{
		Title:   "Already decided",
		Heading: "This booking was already decided",
		Message: "Current status: " + string(status) + ". No changes were made.",
		Tone:    "info",
	}
}

func invalidTokenPage() pageData {
	return pageData{
		Title:   "Invalid link",
		Heading: "This link is not valid",
		Message: "The decision link is unknown or malformed. Check that the full link was copied.",
		Tone:    "error",
	}
}

func tokenUsedPage() pageData {
	return pageData{
		Title:   "Link already used",
		Heading: "This link was already used",
		Message: "Each decision link works exactly once. The decision page you saw earlier still stands.",
		Tone:    "info",
	}
}

func cooldownPage() pageData {
	return pageData{
		Title:   "One moment",
		Heading: "This link is not active yet",
		Message: "Give it a couple of seconds and open the link again.",
		Tone:    "info",
	}
}

func bookingMissingPage() pageData {
	return pageData{
		Title:   "Booking not found",
		Heading: "We could not find this booking yet",
		Message: "The booking record may still be syncing. Try the link again in a minute.",
		Tone:    "info",
	}
}

func manualReviewPage() pageData {
	return pageData{
		Title:   "Needs manual review",
		Heading: "This booking needs manual review",
		Message: "The booking record is in an unexpected state and was left unchanged. Check the ledger row, then open the link again.",
		Tone:    "error",
	}
}

func errorPage() pageData {
	return pageData{
		Title:   "Something went wrong",
		Heading: "Something went wrong",
		Message: "The decision could not be recorded. Try the link again shortly.",
		Tone:    "error",
	}
}
