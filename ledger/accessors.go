package ledger

import (
	"encoding/binary"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/encoder"
)

const uint64Size = 8

func uint64Bytes(v uint64) []byte {
	b := make([]byte, uint64Size)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func binaryUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func decodeVote(val []byte, vote *core.Vote) error {
	return encoder.Unmarshal(val, vote)
}

func decodeAggregate(val []byte, agg *core.AggregateCount) error {
	return encoder.Unmarshal(val, agg)
}

// The vote log is maintained as follows:
//
// [db.Votes](CompetitionID, VoteID) -> (Vote)
// [db.VotesByPurchase](PurchaseID, VoteID) -> (CompetitionID)
// [db.VoterDayIndex](CompetitionID, Day, IdentityHash, VoteID) -> ()
//
// "[]" is the db prefix to represent a bucket, "()" are additional keys
// appended to the prefix or values marshalled together, "->" is a key-value
// pair. Purchased votes are absent from the voter-day index since they never
// count against the daily cap.
func voteKey(competitionID, voteID uint64) []byte {
	return db.Votes.Key(uint64Bytes(competitionID), uint64Bytes(voteID))
}

func purchaseVoteKey(purchaseID, voteID uint64) []byte {
	return db.VotesByPurchase.Key(uint64Bytes(purchaseID), uint64Bytes(voteID))
}

func voterDayKey(competitionID, day uint64, identity core.VoterIdentity, voteID uint64) []byte {
	hash := identity.Hash()
	return db.VoterDayIndex.Key(
		uint64Bytes(competitionID), uint64Bytes(day), hash[:], uint64Bytes(voteID))
}

func voterDayPrefix(competitionID, day uint64, identity core.VoterIdentity) []byte {
	hash := identity.Hash()
	return db.VoterDayIndex.Key(uint64Bytes(competitionID), uint64Bytes(day), hash[:])
}

func aggregateKey(competitionID, contestantID uint64) []byte {
	return db.Aggregates.Key(uint64Bytes(competitionID), uint64Bytes(contestantID))
}

func purchaseKey(purchaseID uint64) []byte {
	return db.Purchases.Key(uint64Bytes(purchaseID))
}

func storeVote(txn db.Transaction, vote *core.Vote) error {
	voteBytes, err := encoder.Marshal(vote)
	if err != nil {
		return err
	}
	if err := txn.Set(voteKey(vote.CompetitionID, vote.ID), voteBytes); err != nil {
		return err
	}

	if vote.PurchaseID != 0 {
		return txn.Set(
			purchaseVoteKey(vote.PurchaseID, vote.ID), uint64Bytes(vote.CompetitionID))
	}

	// Free votes feed the daily rate-limit index.
	day := dayNumber(vote.CastAt)
	return txn.Set(voterDayKey(vote.CompetitionID, day, vote.Identity(), vote.ID), nil)
}

func getVote(txn db.Transaction, competitionID, voteID uint64) (vote *core.Vote, err error) {
	vote = new(core.Vote)
	if err = txn.Get(voteKey(competitionID, voteID), func(val []byte) error {
		return encoder.Unmarshal(val, vote)
	}); err != nil {
		return nil, err
	}
	return vote, nil
}

func getAggregate(txn db.Transaction, competitionID, contestantID uint64) (*core.AggregateCount, error) {
	agg := new(core.AggregateCount)
	if err := txn.Get(aggregateKey(competitionID, contestantID), func(val []byte) error {
		return encoder.Unmarshal(val, agg)
	}); err != nil {
		return nil, err
	}
	return agg, nil
}

func storeAggregate(txn db.Transaction, agg *core.AggregateCount) error {
	aggBytes, err := encoder.Marshal(agg)
	if err != nil {
		return err
	}
	return txn.Set(aggregateKey(agg.CompetitionID, agg.ContestantID), aggBytes)
}
