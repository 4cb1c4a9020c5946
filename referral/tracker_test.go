package referral_test

import (
	"testing"
	"time"

	"github.com/starcasthq/starcast/core"
	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/referral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) *referral.Tracker {
	t.Helper()
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })
	return referral.NewTracker(testDB)
}

func TestGenerateCode(t *testing.T) {
	tracker := newTracker(t)
	now := time.Now()

	code, err := tracker.GenerateCode(&referral.CodeRequest{
		OwnerID:   42,
		OwnerType: core.OwnerTalent,
		OwnerName: "Ada",
	}, now)
	require.NoError(t, err)
	assert.Len(t, code.Code, 8)
	assert.Equal(t, uint64(42), code.OwnerID)
	assert.False(t, code.Scoped())

	t.Run("stats created atomically", func(t *testing.T) {
		stats, err := tracker.Stats(code.Code)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalVotesDriven)
		assert.Zero(t, stats.UniqueVoters)
	})

	t.Run("idempotent per owner", func(t *testing.T) {
		again, err := tracker.GenerateCode(&referral.CodeRequest{
			OwnerID:   42,
			OwnerType: core.OwnerTalent,
			OwnerName: "Ada",
		}, now)
		require.NoError(t, err)
		assert.Equal(t, code.Code, again.Code)
	})

	t.Run("scoped codes bypass the duplicate check", func(t *testing.T) {
		scoped, err := tracker.GenerateCode(&referral.CodeRequest{
			OwnerID:       42,
			OwnerType:     core.OwnerTalent,
			OwnerName:     "Ada",
			CompetitionID: 10,
			ContestantID:  100,
		}, now)
		require.NoError(t, err)
		assert.NotEqual(t, code.Code, scoped.Code)
		assert.True(t, scoped.Scoped())

		// The unscoped code survives alongside.
		unscoped, err := tracker.GenerateCode(&referral.CodeRequest{
			OwnerID:   42,
			OwnerType: core.OwnerTalent,
			OwnerName: "Ada",
		}, now)
		require.NoError(t, err)
		assert.Equal(t, code.Code, unscoped.Code)
	})

	t.Run("skip duplicate check forces a new code", func(t *testing.T) {
		forced, err := tracker.GenerateCode(&referral.CodeRequest{
			OwnerID:            42,
			OwnerType:          core.OwnerTalent,
			OwnerName:          "Ada",
			SkipDuplicateCheck: true,
		}, now)
		require.NoError(t, err)
		assert.NotEqual(t, code.Code, forced.Code)
	})
}

func TestTrackVote(t *testing.T) {
	tracker := newTracker(t)
	now := time.Now()

	code, err := tracker.GenerateCode(&referral.CodeRequest{
		OwnerID:   42,
		OwnerType: core.OwnerHost,
		OwnerName: "Grace",
	}, now)
	require.NoError(t, err)

	first := core.VoterIdentity("203.0.113.7")
	second := core.VoterIdentity("198.51.100.1")

	t.Run("new identity moves both counters", func(t *testing.T) {
		require.NoError(t, tracker.TrackVote(code.Code, first, 1))

		stats, err := tracker.Stats(code.Code)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), stats.TotalVotesDriven)
		assert.Equal(t, uint64(1), stats.UniqueVoters)
	})

	t.Run("repeat identity moves only the driven total", func(t *testing.T) {
		require.NoError(t, tracker.TrackVote(code.Code, first, 1))

		stats, err := tracker.Stats(code.Code)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), stats.TotalVotesDriven)
		assert.Equal(t, uint64(1), stats.UniqueVoters)
	})

	t.Run("bulk credit counts identity once", func(t *testing.T) {
		require.NoError(t, tracker.TrackVote(code.Code, second, 800))

		stats, err := tracker.Stats(code.Code)
		require.NoError(t, err)
		assert.Equal(t, uint64(802), stats.TotalVotesDriven)
		assert.Equal(t, uint64(2), stats.UniqueVoters)
	})

	t.Run("unknown code", func(t *testing.T) {
		assert.ErrorIs(t, tracker.TrackVote("NOSUCHCD", first, 1), referral.ErrCodeNotFound)
	})
}

func TestTrackVoteAcrossRestart(t *testing.T) {
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })

	tracker := referral.NewTracker(testDB)
	code, err := tracker.GenerateCode(&referral.CodeRequest{
		OwnerID:   42,
		OwnerType: core.OwnerHost,
	}, time.Now())
	require.NoError(t, err)

	identity := core.VoterIdentity("203.0.113.7")
	require.NoError(t, tracker.TrackVote(code.Code, identity, 1))

	// A fresh tracker over the same database must still recognise the
	// identity, so unique voters survive a process restart.
	restarted := referral.NewTracker(testDB)
	require.NoError(t, restarted.TrackVote(code.Code, identity, 1))

	stats, err := restarted.Stats(code.Code)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalVotesDriven)
	assert.Equal(t, uint64(1), stats.UniqueVoters)

	t.Run("new identities still count once", func(t *testing.T) {
		other := core.VoterIdentity("198.51.100.9")
		require.NoError(t, restarted.TrackVote(code.Code, other, 1))

		stats, err := restarted.Stats(code.Code)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), stats.TotalVotesDriven)
		assert.Equal(t, uint64(2), stats.UniqueVoters)
	})
}

func TestAllStats(t *testing.T) {
	tracker := newTracker(t)
	now := time.Now()

	for ownerID := uint64(1); ownerID <= 3; ownerID++ {
		_, err := tracker.GenerateCode(&referral.CodeRequest{
			OwnerID:   ownerID,
			OwnerType: core.OwnerTalent,
			OwnerName: "owner",
		}, now)
		require.NoError(t, err)
	}

	all, err := tracker.AllStats()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteCode(t *testing.T) {
	tracker := newTracker(t)
	now := time.Now()

	code, err := tracker.GenerateCode(&referral.CodeRequest{
		OwnerID:   42,
		OwnerType: core.OwnerAdmin,
		OwnerName: "Ops",
	}, now)
	require.NoError(t, err)
	require.NoError(t, tracker.TrackVote(code.Code, "203.0.113.7", 1))

	require.NoError(t, tracker.DeleteCode(code.Code))

	_, err = tracker.Code(code.Code)
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)
	_, err = tracker.Stats(code.Code)
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)

	t.Run("owner can generate a fresh code afterwards", func(t *testing.T) {
		fresh, err := tracker.GenerateCode(&referral.CodeRequest{
			OwnerID:   42,
			OwnerType: core.OwnerAdmin,
			OwnerName: "Ops",
		}, now)
		require.NoError(t, err)
		assert.NotEqual(t, code.Code, fresh.Code)

		// The voter set was removed with the old code, so the same identity
		// is unique again.
		require.NoError(t, tracker.TrackVote(fresh.Code, "203.0.113.7", 1))
		stats, err := tracker.Stats(fresh.Code)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), stats.UniqueVoters)
	})

	t.Run("deleting an unknown code", func(t *testing.T) {
		assert.ErrorIs(t, tracker.DeleteCode("NOSUCHCD"), referral.ErrCodeNotFound)
	})
}
