package core

import (
	"errors"
	"time"
)

type OwnerType uint8

const (
	OwnerTalent OwnerType = iota
	OwnerHost
	OwnerAdmin
	OwnerCustom
)

var ErrUnknownOwnerType = errors.New("unknown owner type (known: talent, host, admin, custom)")

func (o OwnerType) String() string {
	switch o {
	case OwnerTalent:
		return "talent"
	case OwnerHost:
		return "host"
	case OwnerAdmin:
		return "admin"
	case OwnerCustom:
		return "custom"
	default:
		// Should not happen.
		panic(ErrUnknownOwnerType)
	}
}

func (o *OwnerType) Set(str string) error {
	switch str {
	case "talent":
		*o = OwnerTalent
	case "host":
		*o = OwnerHost
	case "admin":
		*o = OwnerAdmin
	case "custom":
		*o = OwnerCustom
	default:
		return ErrUnknownOwnerType
	}
	return nil
}

func (o *OwnerType) UnmarshalText(text []byte) error {
	return o.Set(string(text))
}

func (o OwnerType) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ReferralCode maps a short opaque token to its owner. CompetitionID and
// ContestantID are zero for unscoped codes; an owner holds at most one
// unscoped code but may hold several scoped ones.
type ReferralCode struct {
	Code          string
	OwnerID       uint64
	OwnerType     OwnerType
	OwnerName     string
	CompetitionID uint64
	ContestantID  uint64
	CreatedAt     time.Time
}

// Scoped reports whether the code is tied to a specific competition or
// contestant.
func (c *ReferralCode) Scoped() bool {
	return c.CompetitionID != 0 || c.ContestantID != 0
}

// ReferralStats aggregates the votes a code has driven. The deduplicated set
// of voter identities backing UniqueVoters lives in its own bucket and is
// never exposed.
type ReferralStats struct {
	Code             string
	TotalVotesDriven uint64
	UniqueVoters     uint64
}
