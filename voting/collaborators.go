package voting

import (
	"context"

	"github.com/starcasthq/starcast/core"
)

// CompetitionDirectory supplies competition metadata for cast validation. The
// engine never mutates competition metadata. Implementations return an error
// matching ErrCompetitionNotFound for unknown ids.
type CompetitionDirectory interface {
	Competition(ctx context.Context, id uint64) (*core.Competition, error)
}

// PaymentClient charges a payer before any purchased vote is cast. A
// successful result carries an opaque transaction reference the engine trusts
// as already paid for.
type PaymentClient interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
}

type ChargeRequest struct {
	PayerAccountID uint64
	GuestEmail     string
	GuestName      string
	CompetitionID  uint64
	ContestantID   uint64
	VoteCount      uint64
	AmountDue      int64
}

type ChargeResult struct {
	Reference     string
	AmountCharged int64
}
