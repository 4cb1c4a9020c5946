package core

import (
	"crypto/sha256"
	"errors"
	"strconv"
	"time"
)

type VoteSource uint8

const (
	SourceOnline VoteSource = iota
	SourceInPerson
)

var ErrUnknownVoteSource = errors.New("unknown vote source (known: online, in_person)")

func (s VoteSource) String() string {
	switch s {
	case SourceOnline:
		return "online"
	case SourceInPerson:
		return "in_person"
	default:
		// Should not happen.
		panic(ErrUnknownVoteSource)
	}
}

func (s *VoteSource) Set(str string) error {
	switch str {
	case "online":
		*s = SourceOnline
	case "in_person":
		*s = SourceInPerson
	default:
		return ErrUnknownVoteSource
	}
	return nil
}

func (s *VoteSource) UnmarshalText(text []byte) error {
	return s.Set(string(text))
}

func (s VoteSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// VoterIdentity is an opaque, pre-validated caller identity: an IP address
// string for anonymous voters, an account token for authenticated ones, or a
// venue-supplied terminal token for in-person collection. The engine performs
// no authentication itself.
type VoterIdentity string

const IdentityHashSize = sha256.Size

// Hash returns the fixed-width form of the identity used in database keys.
func (v VoterIdentity) Hash() [IdentityHashSize]byte {
	return sha256.Sum256([]byte(v))
}

// AccountIdentity returns the voter identity for an authenticated account.
// The prefix keeps account tokens from colliding with IP strings.
func AccountIdentity(accountID uint64) VoterIdentity {
	return VoterIdentity("account:" + strconv.FormatUint(accountID, 10))
}

// Vote is a single cast vote, immutable once written. The vote log is the
// source of truth for every derived counter.
type Vote struct {
	ID            uint64
	CompetitionID uint64
	ContestantID  uint64

	// VoterIP is empty for authenticated and purchased votes.
	VoterIP string
	// AccountID is zero for anonymous votes.
	AccountID uint64
	// PurchaseID is zero for free votes and links purchased votes to the
	// Purchase that paid for them.
	PurchaseID uint64

	Source       VoteSource
	ReferralCode string
	CastAt       time.Time
}

// Identity returns the voter identity the vote was cast under.
func (v *Vote) Identity() VoterIdentity {
	if v.VoterIP != "" {
		return VoterIdentity(v.VoterIP)
	}
	return AccountIdentity(v.AccountID)
}

// Free reports whether the vote counts against the daily free-vote cap.
func (v *Vote) Free() bool {
	return v.PurchaseID == 0
}
