package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bookflow/bookflow/internal/domain/booking"
)

// BookingLedger implements booking.Ledger on the sheet client. The booking
// sheet holds one row per transaction starting at row 2 (row 1 is headers).
type BookingLedger struct {
	client *Client
	sheet  string
	logger zerolog.Logger
}

func NewBookingLedger(client *Client, sheet string, logger zerolog.Logger) *BookingLedger {
	if sheet == "" {
		sheet = "Bookings"
	}
	return &BookingLedger{
		client: client,
		sheet:  sheet,
		logger: logger.With().Str("client", "booking_ledger").Logger(),
	}
}

func (l *BookingLedger) appendRange() string {
	return fmt.Sprintf("%s!A2:L", l.sheet)
}

func (l *BookingLedger) statusRange(rowNumber int) string {
	return fmt.Sprintf("%s!L%d", l.sheet, rowNumber)
}

// AppendBooking writes the booking row and verifies the write landed under
// the expected transaction id. Verification failure here is fatal: this is
// the primary write of the intake path.
func (l *BookingLedger) AppendBooking(ctx context.Context, rec *booking.Record) error {
	_, err := l.client.AppendVerified(ctx, l.appendRange(), rec.Row(), rec.TransactionID)
	return err
}

// FindByTransactionID scans the booking range for the row whose first
// column matches the transaction id.
func (l *BookingLedger) FindByTransactionID(ctx context.Context, transactionID string) (*booking.Row, error) {
	rows, err := l.client.Read(ctx, l.appendRange())
	if err != nil {
		return nil, err
	}
	for i, cells := range rows {
		if len(cells) == 0 || cells[booking.ColTransactionID] != transactionID {
			continue
		}
		row := &booking.Row{
			Number: i + 2, // range starts at sheet row 2
			Cells:  cells,
		}
		if len(cells) > booking.ColStatus {
			row.Status = booking.Status(cells[booking.ColStatus])
		}
		return row, nil
	}
	return nil, nil
}

// UpdateStatus writes the status column of a located row. The update is
// retried by the client but not re-read: a wrong row here would mean the
// row moved between read and write, which the optimistic check upstream
// already accepts as a race.
func (l *BookingLedger) UpdateStatus(ctx context.Context, rowNumber int, status booking.Status) error {
	return l.client.Update(ctx, l.statusRange(rowNumber), [][]string{{string(status)}})
}
