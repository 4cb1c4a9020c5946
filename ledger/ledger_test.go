package ledger_test

import (
	"testing"
	"time"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })
	return ledger.New(testDB)
}

func freeVote(id, competitionID, contestantID uint64, ip string, castAt time.Time) *core.Vote {
	return &core.Vote{
		ID:            id,
		CompetitionID: competitionID,
		ContestantID:  contestantID,
		VoterIP:       ip,
		Source:        core.SourceOnline,
		CastAt:        castAt,
	}
}

func TestAppendAndGet(t *testing.T) {
	l := newLedger(t)
	now := time.Now()

	vote := freeVote(1, 10, 100, "203.0.113.7", now)
	require.NoError(t, l.Append(vote))

	got, err := l.Vote(10, 1)
	require.NoError(t, err)
	assert.Equal(t, vote.ID, got.ID)
	assert.Equal(t, vote.ContestantID, got.ContestantID)
	assert.Equal(t, vote.VoterIP, got.VoterIP)
	assert.Equal(t, core.SourceOnline, got.Source)
	assert.True(t, got.Free())

	_, err = l.Vote(10, 2)
	assert.ErrorIs(t, err, ledger.ErrVoteNotFound)
}

func TestVotesByCompetition(t *testing.T) {
	l := newLedger(t)
	now := time.Now()

	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, l.Append(freeVote(id, 10, 100, "203.0.113.7", now)))
	}
	require.NoError(t, l.Append(freeVote(4, 11, 100, "203.0.113.7", now)))

	votes, err := l.VotesByCompetition(10)
	require.NoError(t, err)
	require.Len(t, votes, 3)
	for i, vote := range votes {
		assert.Equal(t, uint64(i+1), vote.ID) // cast order
	}
}

func TestVotesToday(t *testing.T) {
	l := newLedger(t)
	now := time.Now()
	identity := core.VoterIdentity("203.0.113.7")

	t.Run("empty log", func(t *testing.T) {
		count, err := l.VotesToday(10, identity, now)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	require.NoError(t, l.Append(freeVote(1, 10, 100, "203.0.113.7", now)))
	require.NoError(t, l.Append(freeVote(2, 10, 101, "203.0.113.7", now)))

	t.Run("counts free votes for the identity", func(t *testing.T) {
		count, err := l.VotesToday(10, identity, now)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), count)
	})

	t.Run("other identity unaffected", func(t *testing.T) {
		count, err := l.VotesToday(10, core.VoterIdentity("198.51.100.1"), now)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("other competition unaffected", func(t *testing.T) {
		count, err := l.VotesToday(11, identity, now)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("purchased votes never count", func(t *testing.T) {
		purchased := &core.Vote{
			ID: 3, CompetitionID: 10, ContestantID: 100,
			AccountID: 55, PurchaseID: 7,
			Source: core.SourceOnline, CastAt: now,
		}
		require.NoError(t, l.Append(purchased))

		count, err := l.VotesToday(10, core.AccountIdentity(55), now)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("yesterday's votes expire", func(t *testing.T) {
		yesterday := now.AddDate(0, 0, -1)
		require.NoError(t, l.Append(freeVote(4, 10, 100, "203.0.113.7", yesterday)))

		count, err := l.VotesToday(10, identity, now)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), count)
	})
}

func TestIncrementAggregate(t *testing.T) {
	l := newLedger(t)
	now := time.Now()

	t.Run("lazily created with the incoming source", func(t *testing.T) {
		agg, err := l.IncrementAggregate(10, 100, core.SourceOnline, 1, now)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), agg.OnlineCount)
		assert.Zero(t, agg.InPersonCount)
		assert.Equal(t, uint64(1), agg.TotalCount)
	})

	t.Run("in-person increments the other side", func(t *testing.T) {
		agg, err := l.IncrementAggregate(10, 100, core.SourceInPerson, 1, now)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), agg.OnlineCount)
		assert.Equal(t, uint64(1), agg.InPersonCount)
		assert.Equal(t, uint64(2), agg.TotalCount)
	})

	t.Run("batch increment", func(t *testing.T) {
		agg, err := l.IncrementAggregate(10, 100, core.SourceOnline, 800, now)
		require.NoError(t, err)
		assert.Equal(t, uint64(801), agg.OnlineCount)
		assert.Equal(t, uint64(802), agg.TotalCount)
		assert.Equal(t, agg.OnlineCount+agg.InPersonCount, agg.TotalCount)
	})
}

func TestAggregateZeroWithoutVotes(t *testing.T) {
	l := newLedger(t)

	agg, err := l.Aggregate(10, 100)
	require.NoError(t, err)
	assert.Zero(t, agg.TotalCount)

	count, err := l.VoteCount(10, 100)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTotalVotes(t *testing.T) {
	l := newLedger(t)
	now := time.Now()

	_, err := l.IncrementAggregate(10, 100, core.SourceOnline, 3, now)
	require.NoError(t, err)
	_, err = l.IncrementAggregate(10, 101, core.SourceInPerson, 2, now)
	require.NoError(t, err)
	_, err = l.IncrementAggregate(11, 200, core.SourceOnline, 9, now)
	require.NoError(t, err)

	total, err := l.TotalVotes(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), total)
}

func TestSyncCountRepairsDrift(t *testing.T) {
	l := newLedger(t)
	now := time.Now()

	for id := uint64(1); id <= 4; id++ {
		require.NoError(t, l.Append(freeVote(id, 10, 100, "203.0.113.7", now)))
	}
	inPerson := freeVote(5, 10, 100, "", now)
	inPerson.AccountID = 9
	inPerson.Source = core.SourceInPerson
	require.NoError(t, l.Append(inPerson))
	require.NoError(t, l.Append(freeVote(6, 10, 999, "203.0.113.7", now)))

	// Corrupt the cached counter.
	_, err := l.IncrementAggregate(10, 100, core.SourceOnline, 42, now)
	require.NoError(t, err)

	agg, err := l.SyncCount(10, 100, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), agg.OnlineCount)
	assert.Equal(t, uint64(1), agg.InPersonCount)
	assert.Equal(t, uint64(5), agg.TotalCount)

	count, err := l.VoteCount(10, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestVotesByPurchase(t *testing.T) {
	l := newLedger(t)
	now := time.Now()

	var votes []*core.Vote
	for id := uint64(1); id <= 3; id++ {
		votes = append(votes, &core.Vote{
			ID: id, CompetitionID: 10, ContestantID: 100,
			AccountID: 55, PurchaseID: 7,
			Source: core.SourceOnline, CastAt: now,
		})
	}
	require.NoError(t, l.AppendBatch(votes))
	require.NoError(t, l.Append(freeVote(4, 10, 100, "203.0.113.7", now)))

	got, err := l.VotesByPurchase(7)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, vote := range got {
		assert.Equal(t, uint64(7), vote.PurchaseID)
	}
}

func TestPurchaseRoundTrip(t *testing.T) {
	l := newLedger(t)

	purchase := &core.Purchase{
		ID:               7,
		PayerAccountID:   55,
		CompetitionID:    10,
		ContestantID:     100,
		VoteCount:        800,
		AmountCharged:    49900,
		PaymentReference: "ch_1N8p2x",
		PurchasedAt:      time.Now(),
	}
	require.NoError(t, l.StorePurchase(purchase))

	got, err := l.Purchase(7)
	require.NoError(t, err)
	assert.Equal(t, purchase.VoteCount, got.VoteCount)
	assert.Equal(t, purchase.PaymentReference, got.PaymentReference)

	_, err = l.Purchase(8)
	assert.ErrorIs(t, err, ledger.ErrPurchaseNotFound)
}

func TestDeleteCompetition(t *testing.T) {
	l := newLedger(t)
	now := time.Now()

	require.NoError(t, l.Append(freeVote(1, 10, 100, "203.0.113.7", now)))
	_, err := l.IncrementAggregate(10, 100, core.SourceOnline, 1, now)
	require.NoError(t, err)
	require.NoError(t, l.Append(freeVote(2, 11, 200, "203.0.113.7", now)))

	require.NoError(t, l.DeleteCompetition(10))

	_, err = l.Vote(10, 1)
	assert.ErrorIs(t, err, ledger.ErrVoteNotFound)

	count, err := l.VotesToday(10, core.VoterIdentity("203.0.113.7"), now)
	require.NoError(t, err)
	assert.Zero(t, count)

	total, err := l.TotalVotes(10)
	require.NoError(t, err)
	assert.Zero(t, total)

	// Other competitions untouched.
	_, err = l.Vote(11, 2)
	assert.NoError(t, err)
}
