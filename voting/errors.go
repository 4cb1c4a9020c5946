package voting

import "errors"

var (
	// ErrCompetitionNotFound is returned when the competition directory has
	// no entry for the requested competition.
	ErrCompetitionNotFound = errors.New("competition not found")

	// ErrContestantNotInCompetition is returned when the contestant does not
	// belong to the target competition.
	ErrContestantNotInCompetition = errors.New("contestant not in competition")

	// ErrVotingClosed is returned for competitions whose status does not
	// admit votes. Wrapped with the offending status.
	ErrVotingClosed = errors.New("voting closed")

	// ErrRateLimitExceeded is returned when the voter identity has exhausted
	// the competition's daily free-vote cap. Recoverable by waiting for the
	// next day; never retried automatically.
	ErrRateLimitExceeded = errors.New("daily vote limit reached")

	// ErrPaymentFailed wraps an upstream payment error, surfaced before any
	// vote is cast. A charge and a cast are never interleaved.
	ErrPaymentFailed = errors.New("payment failed")
)
