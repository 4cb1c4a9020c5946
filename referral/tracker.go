// Package referral attributes votes to referral codes held by talents, hosts
// and admins, deduplicating unique voters per code.
package referral

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/encoder"
)

var ErrCodeNotFound = errors.New("referral code not found")

const tokenAttempts = 3

// The referral buckets are maintained as follows:
//
// [db.ReferralCodes](Code) -> (ReferralCode)
// [db.ReferralCodesByOwner](OwnerID) -> (Code)   unscoped codes only
// [db.ReferralStats](Code) -> (ReferralStats)
// [db.ReferralVoters](Code, IdentityHash) -> ()
//
// A code and its stats are created and deleted together; stats never dangle.
type Tracker struct {
	database db.DB
	seen     *seenFilter
}

func NewTracker(database db.DB) *Tracker {
	t := &Tracker{
		database: database,
		seen:     newSeenFilter(),
	}
	// Warm the filter with the voter pairs already on disk; a negative answer
	// is only definitive when the filter covers them. If the warm-up fails the
	// filter is distrusted and every lookup falls through to the exact set.
	if err := t.warmSeenFilter(); err != nil {
		t.seen.Distrust()
	}
	return t
}

func (t *Tracker) warmSeenFilter() error {
	return t.database.View(func(txn db.Transaction) error {
		it, err := txn.NewIterator()
		if err != nil {
			return err
		}
		defer it.Close()

		prefix := db.ReferralVoters.Key()
		for it.Seek(prefix); it.Valid(); it.Next() {
			if !bytes.HasPrefix(it.Key(), prefix) {
				break
			}
			t.seen.Add(it.Key())
		}
		return nil
	})
}

// CodeRequest describes the owner a code is generated for. CompetitionID and
// ContestantID scope the code; scoped requests may also set
// SkipDuplicateCheck since one owner may hold several scoped codes.
type CodeRequest struct {
	OwnerID            uint64
	OwnerType          core.OwnerType
	OwnerName          string
	CompetitionID      uint64
	ContestantID       uint64
	SkipDuplicateCheck bool
}

func (r *CodeRequest) scoped() bool {
	return r.CompetitionID != 0 || r.ContestantID != 0
}

// GenerateCode creates a referral code and its stats entry atomically.
// Idempotent by default: an existing unscoped code for the owner is returned
// unchanged rather than duplicated. Scoped requests bypass the check.
func (t *Tracker) GenerateCode(req *CodeRequest, now time.Time) (*core.ReferralCode, error) {
	var code *core.ReferralCode
	err := db.UpdateWithRetry(t.database, func(txn db.Transaction) error {
		if !req.scoped() && !req.SkipDuplicateCheck {
			existing, err := ownerCode(txn, req.OwnerID)
			if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
				return err
			}
			if existing != "" {
				code, err = getCode(txn, existing)
				return err
			}
		}

		token, err := t.freshToken(txn)
		if err != nil {
			return err
		}
		code = &core.ReferralCode{
			Code:          token,
			OwnerID:       req.OwnerID,
			OwnerType:     req.OwnerType,
			OwnerName:     req.OwnerName,
			CompetitionID: req.CompetitionID,
			ContestantID:  req.ContestantID,
			CreatedAt:     now,
		}
		if err := storeCode(txn, code); err != nil {
			return err
		}
		if !code.Scoped() {
			if err := txn.Set(ownerKey(req.OwnerID), []byte(token)); err != nil {
				return err
			}
		}
		return storeStats(txn, &core.ReferralStats{Code: token})
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// Code resolves a code token.
func (t *Tracker) Code(code string) (*core.ReferralCode, error) {
	var resolved *core.ReferralCode
	err := t.database.View(func(txn db.Transaction) error {
		var err error
		resolved, err = getCode(txn, code)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return resolved, nil
}

// TrackVote credits count votes to the code. The first appearance of a voter
// identity on the code also increments the unique-voter count; repeat
// identities only move the driven total. Unknown codes are an error, left to
// the caller to ignore where attribution is best-effort.
func (t *Tracker) TrackVote(code string, identity core.VoterIdentity, count uint64) error {
	voterK := voterKey(code, identity)
	maybeSeen := t.seen.MaybeSeen(voterK)

	err := db.UpdateWithRetry(t.database, func(txn db.Transaction) error {
		stats, err := getStats(txn, code)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				return ErrCodeNotFound
			}
			return err
		}
		stats.TotalVotesDriven += count

		seen := false
		if maybeSeen {
			// The filter can yield false positives; confirm exactly.
			switch err := txn.Get(voterK, func([]byte) error { return nil }); {
			case err == nil:
				seen = true
			case errors.Is(err, db.ErrKeyNotFound):
			default:
				return err
			}
		}
		if !seen {
			stats.UniqueVoters++
			if err := txn.Set(voterK, nil); err != nil {
				return err
			}
		}
		return storeStats(txn, stats)
	})
	if err != nil {
		return err
	}
	t.seen.Add(voterK)
	return nil
}

// Stats returns the aggregates for a single code.
func (t *Tracker) Stats(code string) (*core.ReferralStats, error) {
	var stats *core.ReferralStats
	err := t.database.View(func(txn db.Transaction) error {
		var err error
		stats, err = getStats(txn, code)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return stats, nil
}

// AllStats returns the aggregates of every code, in code order.
func (t *Tracker) AllStats() ([]*core.ReferralStats, error) {
	var all []*core.ReferralStats
	err := t.database.View(func(txn db.Transaction) error {
		it, err := txn.NewIterator()
		if err != nil {
			return err
		}
		defer it.Close()

		prefix := db.ReferralStats.Key()
		for it.Seek(prefix); it.Valid(); it.Next() {
			if !bytes.HasPrefix(it.Key(), prefix) {
				break
			}
			val, err := it.Value()
			if err != nil {
				return err
			}
			stats := new(core.ReferralStats)
			if err := encoder.Unmarshal(val, stats); err != nil {
				return err
			}
			all = append(all, stats)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// DeleteCode removes the code, its stats and its voter set in one
// transaction, so stats never outlive their code.
func (t *Tracker) DeleteCode(code string) error {
	return db.UpdateWithRetry(t.database, func(txn db.Transaction) error {
		existing, err := getCode(txn, code)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				return ErrCodeNotFound
			}
			return err
		}

		if !existing.Scoped() {
			owned, err := ownerCode(txn, existing.OwnerID)
			if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
				return err
			}
			if owned == code {
				if err := txn.Delete(ownerKey(existing.OwnerID)); err != nil {
					return err
				}
			}
		}

		if err := txn.Delete(codeKey(code)); err != nil {
			return err
		}
		if err := txn.Delete(statsKey(code)); err != nil {
			return err
		}
		return deleteVoterSet(txn, code)
	})
}

func (t *Tracker) freshToken(txn db.Transaction) (string, error) {
	for range tokenAttempts {
		token, err := newToken()
		if err != nil {
			return "", err
		}
		switch _, err := getCode(txn, token); {
		case errors.Is(err, db.ErrKeyNotFound):
			return token, nil
		case err != nil:
			return "", err
		}
	}
	return "", fmt.Errorf("no fresh code token after %d attempts", tokenAttempts)
}
