package booking

import (
	"strconv"
	"time"
)

// Status is the decision status stored in the ledger's status column.
type Status string

const (
	StatusPendingReview Status = "Pending Review"
	StatusAccepted      Status = "Accepted"
	StatusDenied        Status = "Denied"
)

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDenied
}

// Request is a validated booking submission from the webhook source.
type Request struct {
	SubmissionID    string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	PickupLocation  string
	DropoffLocation string
	PickupTime      string
	Passengers      int
	Price           string
	Notes           string
}

// Record is a booking as written to the ledger, keyed by transaction id.
type Record struct {
	TransactionID string
	ReceivedAt    time.Time
	Status        Status
	Request       Request
}

// Ledger column layout. The transaction id sits in the first column and the
// status in the last; the decision state machine matches rows and updates
// status by these positions.
const (
	ColTransactionID = 0
	ColReceivedAt    = 1
	ColCustomerName  = 2
	ColCustomerEmail = 3
	ColCustomerPhone = 4
	ColPickup        = 5
	ColDropoff       = 6
	ColPickupTime    = 7
	ColPassengers    = 8
	ColPrice         = 9
	ColNotes         = 10
	ColStatus        = 11

	ColumnCount = 12
)

// Row flattens the record into the ledger's column order.
func (r *Record) Row() []string {
	row := make([]string, ColumnCount)
	row[ColTransactionID] = r.TransactionID
	row[ColReceivedAt] = r.ReceivedAt.UTC().Format(time.RFC3339)
	row[ColCustomerName] = r.Request.CustomerName
	row[ColCustomerEmail] = r.Request.CustomerEmail
	row[ColCustomerPhone] = r.Request.CustomerPhone
	row[ColPickup] = r.Request.PickupLocation
	row[ColDropoff] = r.Request.DropoffLocation
	row[ColPickupTime] = r.Request.PickupTime
	row[ColPassengers] = passengersCell(r.Request.Passengers)
	row[ColPrice] = r.Request.Price
	row[ColNotes] = r.Request.Notes
	row[ColStatus] = string(r.Status)
	return row
}

func passengersCell(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
