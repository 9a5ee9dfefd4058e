package booking

import "context"

// Row is a ledger row located by transaction id.
type Row struct {
	Number int // 1-based sheet row number
	Cells  []string
	Status Status
}

// Ledger is the external store of record for bookings. Reads are eventually
// consistent; there is no conditional write, so callers layer optimistic
// status checks on top.
type Ledger interface {
	AppendBooking(ctx context.Context, rec *Record) error
	FindByTransactionID(ctx context.Context, transactionID string) (*Row, error)
	UpdateStatus(ctx context.Context, rowNumber int, status Status) error
}
