package core

import (
	"errors"
	"slices"
)

type CompetitionStatus uint8

const (
	StatusDraft CompetitionStatus = iota
	StatusActive
	StatusVoting
	StatusCompleted
)

var ErrUnknownCompetitionStatus = errors.New(
	"unknown competition status (known: draft, active, voting, completed)")

func (s CompetitionStatus) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusActive:
		return "active"
	case StatusVoting:
		return "voting"
	case StatusCompleted:
		return "completed"
	default:
		// Should not happen.
		panic(ErrUnknownCompetitionStatus)
	}
}

func (s *CompetitionStatus) Set(str string) error {
	switch str {
	case "draft":
		*s = StatusDraft
	case "active":
		*s = StatusActive
	case "voting":
		*s = StatusVoting
	case "completed":
		*s = StatusCompleted
	default:
		return ErrUnknownCompetitionStatus
	}
	return nil
}

func (s *CompetitionStatus) UnmarshalText(text []byte) error {
	return s.Set(string(text))
}

func (s CompetitionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// VotingOpen reports whether votes may be cast for the competition.
func (s CompetitionStatus) VotingOpen() bool {
	return s == StatusActive || s == StatusVoting
}

// Competition is the read model supplied by the competition directory. The
// engine validates casts against it but never mutates competition metadata.
type Competition struct {
	ID             uint64
	Status         CompetitionStatus
	MaxVotesPerDay uint64
	ContestantIDs  []uint64
}

func (c *Competition) HasContestant(contestantID uint64) bool {
	return slices.Contains(c.ContestantIDs, contestantID)
}
