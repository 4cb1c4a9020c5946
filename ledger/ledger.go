// Package ledger implements the vote log and the aggregate counter store. The
// log is append-only and authoritative; aggregates are a denormalized cache
// incremented in their own transactions after the log append, so a partial
// failure always under-counts and is repairable with SyncCount.
package ledger

import (
	"bytes"
	"errors"
	"time"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/db"
)

var ErrVoteNotFound = errors.New("vote not found")

type Ledger struct {
	database db.DB
}

func New(database db.DB) *Ledger {
	return &Ledger{database: database}
}

// Append writes a vote row and its indexes in a single transaction. This is
// the commit point of a cast: everything after it is best-effort derived
// state.
func (l *Ledger) Append(vote *core.Vote) error {
	return db.UpdateWithRetry(l.database, func(txn db.Transaction) error {
		return storeVote(txn, vote)
	})
}

// AppendBatch writes one row per vote in a single transaction. The log still
// gains an individual row per vote unit for audit and per-contributor
// reporting.
func (l *Ledger) AppendBatch(votes []*core.Vote) error {
	return db.UpdateWithRetry(l.database, func(txn db.Transaction) error {
		for _, vote := range votes {
			if err := storeVote(txn, vote); err != nil {
				return err
			}
		}
		return nil
	})
}

// Vote returns a single vote row.
func (l *Ledger) Vote(competitionID, voteID uint64) (vote *core.Vote, err error) {
	err = l.database.View(func(txn db.Transaction) error {
		vote, err = getVote(txn, competitionID, voteID)
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrVoteNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// VotesByCompetition returns every vote row of a competition in cast order.
func (l *Ledger) VotesByCompetition(competitionID uint64) ([]*core.Vote, error) {
	var votes []*core.Vote
	err := l.database.View(func(txn db.Transaction) error {
		return scanVotes(txn, competitionID, func(vote *core.Vote) error {
			votes = append(votes, vote)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// VotesByPurchase returns the vote rows a purchase paid for.
func (l *Ledger) VotesByPurchase(purchaseID uint64) ([]*core.Vote, error) {
	var votes []*core.Vote
	err := l.database.View(func(txn db.Transaction) error {
		it, err := txn.NewIterator()
		if err != nil {
			return err
		}
		defer it.Close()

		prefix := db.VotesByPurchase.Key(uint64Bytes(purchaseID))
		for it.Seek(prefix); it.Valid(); it.Next() {
			key := it.Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}
			voteID := binaryUint64(key[len(prefix):])
			val, err := it.Value()
			if err != nil {
				return err
			}
			vote, err := getVote(txn, binaryUint64(val), voteID)
			if err != nil {
				return err
			}
			votes = append(votes, vote)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// VotesToday counts the free votes a voter identity has cast in the
// competition since wall-clock midnight. Purchased votes never count against
// the daily cap.
func (l *Ledger) VotesToday(competitionID uint64, identity core.VoterIdentity, now time.Time) (uint64, error) {
	var count uint64
	err := l.database.View(func(txn db.Transaction) error {
		it, err := txn.NewIterator()
		if err != nil {
			return err
		}
		defer it.Close()

		prefix := voterDayPrefix(competitionID, dayNumber(now), identity)
		for it.Seek(prefix); it.Valid(); it.Next() {
			if !bytes.HasPrefix(it.Key(), prefix) {
				break
			}
			count++
		}
		return nil
	})
	return count, err
}

// IncrementAggregate applies count votes from source to the contestant's
// aggregate inside one transaction, creating the document lazily on first
// vote. Increments serialize on the document, never last-writer-wins.
func (l *Ledger) IncrementAggregate(competitionID, contestantID uint64,
	source core.VoteSource, count uint64, now time.Time,
) (*core.AggregateCount, error) {
	var agg *core.AggregateCount
	err := db.UpdateWithRetry(l.database, func(txn db.Transaction) error {
		var err error
		agg, err = getAggregate(txn, competitionID, contestantID)
		if err != nil {
			if !errors.Is(err, db.ErrKeyNotFound) {
				return err
			}
			agg = &core.AggregateCount{
				CompetitionID: competitionID,
				ContestantID:  contestantID,
			}
		}
		agg.Add(source, count, now)
		return storeAggregate(txn, agg)
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// Aggregate returns the contestant's counter document. A contestant with no
// votes yet has no document and zero counts are returned.
func (l *Ledger) Aggregate(competitionID, contestantID uint64) (*core.AggregateCount, error) {
	var agg *core.AggregateCount
	err := l.database.View(func(txn db.Transaction) error {
		var err error
		agg, err = getAggregate(txn, competitionID, contestantID)
		if errors.Is(err, db.ErrKeyNotFound) {
			agg = &core.AggregateCount{
				CompetitionID: competitionID,
				ContestantID:  contestantID,
			}
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// VoteCount returns the contestant's total from the aggregate cache.
func (l *Ledger) VoteCount(competitionID, contestantID uint64) (uint64, error) {
	agg, err := l.Aggregate(competitionID, contestantID)
	if err != nil {
		return 0, err
	}
	return agg.TotalCount, nil
}

// TotalVotes sums the aggregates of every contestant in the competition.
func (l *Ledger) TotalVotes(competitionID uint64) (uint64, error) {
	var total uint64
	err := l.database.View(func(txn db.Transaction) error {
		it, err := txn.NewIterator()
		if err != nil {
			return err
		}
		defer it.Close()

		prefix := db.Aggregates.Key(uint64Bytes(competitionID))
		for it.Seek(prefix); it.Valid(); it.Next() {
			if !bytes.HasPrefix(it.Key(), prefix) {
				break
			}
			val, err := it.Value()
			if err != nil {
				return err
			}
			agg := new(core.AggregateCount)
			if err := decodeAggregate(val, agg); err != nil {
				return err
			}
			total += agg.TotalCount
		}
		return nil
	})
	return total, err
}

// SyncCount recomputes the contestant's aggregate from a full scan of the
// vote log and overwrites the cached document. It is the compensating action
// for a crash between a log append and its counter increment and is operator
// triggered, never automatic.
func (l *Ledger) SyncCount(competitionID, contestantID uint64, now time.Time) (*core.AggregateCount, error) {
	agg := &core.AggregateCount{
		CompetitionID: competitionID,
		ContestantID:  contestantID,
	}
	err := db.UpdateWithRetry(l.database, func(txn db.Transaction) error {
		agg.OnlineCount, agg.InPersonCount, agg.TotalCount = 0, 0, 0
		if err := scanVotes(txn, competitionID, func(vote *core.Vote) error {
			if vote.ContestantID != contestantID {
				return nil
			}
			agg.Add(vote.Source, 1, now)
			return nil
		}); err != nil {
			return err
		}
		agg.UpdatedAt = now
		return storeAggregate(txn, agg)
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// DeleteCompetition removes every vote row, rate-limit index entry and
// aggregate of a competition, part of whole-competition teardown. Purchase
// records are financial history and are kept.
func (l *Ledger) DeleteCompetition(competitionID uint64) error {
	prefixes := [][]byte{
		db.Votes.Key(uint64Bytes(competitionID)),
		db.VoterDayIndex.Key(uint64Bytes(competitionID)),
		db.Aggregates.Key(uint64Bytes(competitionID)),
	}
	return db.UpdateWithRetry(l.database, func(txn db.Transaction) error {
		for _, prefix := range prefixes {
			if err := deletePrefix(txn, prefix); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanVotes(txn db.Transaction, competitionID uint64, cb func(*core.Vote) error) error {
	it, err := txn.NewIterator()
	if err != nil {
		return err
	}
	defer it.Close()

	prefix := db.Votes.Key(uint64Bytes(competitionID))
	for it.Seek(prefix); it.Valid(); it.Next() {
		if !bytes.HasPrefix(it.Key(), prefix) {
			break
		}
		val, err := it.Value()
		if err != nil {
			return err
		}
		vote := new(core.Vote)
		if err := decodeVote(val, vote); err != nil {
			return err
		}
		if err := cb(vote); err != nil {
			return err
		}
	}
	return nil
}

func deletePrefix(txn db.Transaction, prefix []byte) error {
	it, err := txn.NewIterator()
	if err != nil {
		return err
	}
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.Valid(); it.Next() {
		if !bytes.HasPrefix(it.Key(), prefix) {
			break
		}
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
