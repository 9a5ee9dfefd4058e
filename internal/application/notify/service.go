package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bookflow/bookflow/internal/domain/booking"
	"github.com/bookflow/bookflow/internal/domain/token"
	"github.com/bookflow/bookflow/internal/infrastructure/mailer"
)

// Service composes and sends the intake and decision emails. Every send is
// best-effort: failures are logged with enough context to replay by hand
// and never surface to the caller.
type Service struct {
	sender     mailer.Sender
	from       string
	ownerEmail string
	baseURL    string
	logger     zerolog.Logger
}

func NewService(sender mailer.Sender, from, ownerEmail, baseURL string, logger zerolog.Logger) *Service {
	return &Service{
		sender:     sender,
		from:       from,
		ownerEmail: ownerEmail,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With().Str("service", "notify").Logger(),
	}
}

// AcceptLink builds the single-use accept URL for a token.
func (s *Service) AcceptLink(tok string) string {
	return s.baseURL + "/accept/" + tok
}

// DenyLink builds the single-use deny URL for a token.
func (s *Service) DenyLink(tok string) string {
	return s.baseURL + "/deny/" + tok
}

// NotifyOwner sends the owner the decision request with both links.
func (s *Service) NotifyOwner(ctx context.Context, rec *booking.Record, pair token.Pair) {
	req := rec.Request
	subject := fmt.Sprintf("New booking request from %s", req.CustomerName)
	body := fmt.Sprintf(`<p>New booking request.</p>
<ul>
<li>Customer: %s (%s)</li>
<li>Pickup: %s at %s</li>
<li>Dropoff: %s</li>
<li>Passengers: %d</li>
<li>Price: %s</li>
</ul>
<p><a href="%s">Accept booking</a> &middot; <a href="%s">Deny booking</a></p>
<p>Transaction: %s</p>`,
		html.EscapeString(req.CustomerName), html.EscapeString(req.CustomerEmail),
		html.EscapeString(req.PickupLocation), html.EscapeString(req.PickupTime),
		html.EscapeString(req.DropoffLocation),
		req.Passengers, html.EscapeString(req.Price),
		s.AcceptLink(pair.Accept), s.DenyLink(pair.Deny),
		rec.TransactionID)

	s.send(ctx, mailer.Email{
		From:    s.from,
		To:      s.ownerEmail,
		Subject: subject,
		HTML:    body,
	}, rec.TransactionID, "owner_decision_request")
}

// AcknowledgeCustomer sends the customer a receipt for their request.
func (s *Service) AcknowledgeCustomer(ctx context.Context, rec *booking.Record) {
	req := rec.Request
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received your booking request for %s, pickup at %s. We will confirm it shortly.</p>
<p>Reference: %s</p>`,
		html.EscapeString(req.CustomerName),
		html.EscapeString(req.PickupLocation), html.EscapeString(req.PickupTime),
		rec.TransactionID)

	s.send(ctx, mailer.Email{
		From:    s.from,
		To:      req.CustomerEmail,
		Subject: "We received your booking request",
		HTML:    body,
	}, rec.TransactionID, "customer_acknowledgement")
}

// ConfirmDecision tells the customer the outcome of their request.
func (s *Service) ConfirmDecision(ctx context.Context, tok *token.DecisionToken, status booking.Status) {
	var subject, line string
	switch status {
	case booking.StatusAccepted:
		subject = "Your booking is confirmed"
		line = "Good news: your booking request was accepted."
	case booking.StatusDenied:
		subject = "Your booking request"
		line = "Unfortunately we cannot take your booking at the requested time."
	default:
		return
	}
	body := fmt.Sprintf(`<p>Hi %s,</p><p>%s</p><p>Reference: %s</p>`,
		html.EscapeString(tok.CustomerName), line, tok.TransactionID)

	s.send(ctx, mailer.Email{
		From:    s.from,
		To:      tok.CustomerEmail,
		Subject: subject,
		HTML:    body,
	}, tok.TransactionID, "decision_confirmation")
}

func (s *Service) send(ctx context.Context, email mailer.Email, transactionID, stage string) {
	id, err := s.sender.Send(ctx, email)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("transactionId", transactionID).
			Str("stage", stage).
			Str("to", email.To).
			Msg("notification send failed")
		return
	}
	s.logger.Info().
		Str("transactionId", transactionID).
		Str("stage", stage).
		Str("messageId", id).
		Msg("notification sent")
}
