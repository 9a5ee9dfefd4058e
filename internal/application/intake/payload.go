package intake

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bookflow/bookflow/internal/domain/booking"
)

// webhookPayload mirrors the booking form's JSON. The form builder has
// renamed the email field more than once, so every known key is accepted.
type webhookPayload struct {
	CustomerName    string          `json:"customerName"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerEmail2  string          `json:"customer_email"`
	ContactEmail    string          `json:"contactEmail"`
	Phone           string          `json:"phone"`
	PickupLocation  string          `json:"pickupLocation"`
	Pickup          string          `json:"pickup"`
	DropoffLocation string          `json:"dropoffLocation"`
	Dropoff         string          `json:"dropoff"`
	PickupTime      string          `json:"pickupTime"`
	PickupTimeSnake string          `json:"pickup_time"`
	Passengers      json.Number     `json:"passengers"`
	Price           string          `json:"price"`
	Notes           string          `json:"notes"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parsePayload(body []byte) (*booking.Request, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	req := &booking.Request{
		CustomerName:    firstNonEmpty(p.CustomerName, p.Name),
		CustomerEmail:   firstNonEmpty(p.Email, p.CustomerEmail, p.CustomerEmail2, p.ContactEmail),
		CustomerPhone:   strings.TrimSpace(p.Phone),
		PickupLocation:  firstNonEmpty(p.PickupLocation, p.Pickup),
		DropoffLocation: firstNonEmpty(p.DropoffLocation, p.Dropoff),
		PickupTime:      firstNonEmpty(p.PickupTime, p.PickupTimeSnake),
		Price:           strings.TrimSpace(p.Price),
		Notes:           strings.TrimSpace(p.Notes),
	}
	if p.Passengers != "" {
		if n, err := p.Passengers.Int64(); err == nil && n > 0 {
			req.Passengers = int(n)
		}
	}

	switch {
	case req.CustomerName == "":
		return nil, fmt.Errorf("%w: missing customer name", ErrValidation)
	case req.CustomerEmail == "":
		return nil, fmt.Errorf("%w: missing customer email", ErrValidation)
	case !strings.Contains(req.CustomerEmail, "@"):
		return nil, fmt.Errorf("%w: malformed customer email", ErrValidation)
	case req.PickupLocation == "":
		return nil, fmt.Errorf("%w: missing pickup location", ErrValidation)
	case req.DropoffLocation == "":
		return nil, fmt.Errorf("%w: missing dropoff location", ErrValidation)
	case req.PickupTime == "":
		return nil, fmt.Errorf("%w: missing pickup time", ErrValidation)
	}

	return req, nil
}
