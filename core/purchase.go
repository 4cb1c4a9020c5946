package core

import "time"

// Purchase records a paid bundle of votes, immutable once created. A purchase
// owns exactly VoteCount vote rows, created by a single bulk cast; the
// relationship is one purchase to many votes, never the reverse.
type Purchase struct {
	ID uint64

	// PayerAccountID is zero for guest checkouts, in which case GuestEmail
	// and GuestName identify the payer.
	PayerAccountID uint64
	GuestEmail     string
	GuestName      string

	CompetitionID uint64
	ContestantID  uint64

	// VoteCount is the number of vote units bought, any bonus included.
	VoteCount uint64

	// AmountCharged is in minor currency units, as reported by the payment
	// collaborator.
	AmountCharged    int64
	PaymentReference string

	PurchasedAt time.Time
}
