package sequencer_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/sequencer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })
	seq := sequencer.New(testDB)

	for want := uint64(1); want <= 5; want++ {
		got, err := seq.Next(sequencer.Votes)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	current, err := seq.Current(sequencer.Votes)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), current)
}

func TestNamespacesAreIndependent(t *testing.T) {
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })
	seq := sequencer.New(testDB)

	_, err := seq.Next(sequencer.Votes)
	require.NoError(t, err)
	_, err = seq.Next(sequencer.Votes)
	require.NoError(t, err)

	got, err := seq.Next(sequencer.Purchases)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)
}

func TestCurrentEmptyNamespace(t *testing.T) {
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })

	current, err := sequencer.New(testDB).Current(sequencer.Contestants)
	require.NoError(t, err)
	assert.Zero(t, current)
}

func TestNextBlock(t *testing.T) {
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })
	seq := sequencer.New(testDB)

	first, err := seq.NextBlock(sequencer.Votes, 800)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)

	next, err := seq.Next(sequencer.Votes)
	require.NoError(t, err)
	assert.Equal(t, uint64(801), next)
}

// Concurrent callers must observe distinct consecutive ids with no gaps and
// no duplicates.
func TestNextConcurrent(t *testing.T) {
	testDB := db.NewMemTestDB()
	t.Cleanup(func() { testDB.Close() })
	seq := sequencer.New(testDB)

	const (
		workers       = 8
		idsPerWorker  = 50
		expectedTotal = workers * idsPerWorker
	)

	ids := make(chan uint64, expectedTotal)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range idsPerWorker {
				id, err := seq.Next(sequencer.Votes)
				assert.NoError(t, err)
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	got := make([]uint64, 0, expectedTotal)
	for id := range ids {
		got = append(got, id)
	}
	require.Len(t, got, expectedTotal)

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, id := range got {
		assert.Equal(t, uint64(i+1), id)
	}
}
