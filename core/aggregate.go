package core

import "time"

// AggregateCount is the denormalized per-contestant tally. It is derived from
// the vote log and is a cache, never the source of truth: a crash between the
// log append and the counter increment leaves it behind the log until the
// reconciliation operation repairs it.
type AggregateCount struct {
	CompetitionID uint64
	ContestantID  uint64
	OnlineCount   uint64
	InPersonCount uint64
	TotalCount    uint64
	UpdatedAt     time.Time
}

// Add applies count votes from the given source.
func (a *AggregateCount) Add(source VoteSource, count uint64, now time.Time) {
	switch source {
	case SourceInPerson:
		a.InPersonCount += count
	default:
		a.OnlineCount += count
	}
	a.TotalCount += count
	a.UpdatedAt = now
}
