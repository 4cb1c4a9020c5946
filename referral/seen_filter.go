package referral

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	seenFilterCapacity = 1_000_000
	seenFilterFPRate   = 0.01
)

// seenFilter is an approximate set of (code, identity) pairs placed in front
// of the exact per-code voter set in the database. A negative answer is
// definitive and skips the point read on the hot path; a positive answer is
// confirmed against the database, so the unique-voter count stays exact.
// Negative answers are only trustworthy while the filter holds every pair
// already on disk, so it is warmed from the voter bucket on startup and
// distrusted if that warm-up fails.
type seenFilter struct {
	mu         sync.Mutex
	filter     *bloom.BloomFilter
	distrusted bool
}

func newSeenFilter() *seenFilter {
	return &seenFilter{
		filter: bloom.NewWithEstimates(seenFilterCapacity, seenFilterFPRate),
	}
}

// Distrust forces every MaybeSeen answer to true, degrading the filter to a
// no-op so callers always confirm against the exact set.
func (f *seenFilter) Distrust() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distrusted = true
}

func (f *seenFilter) MaybeSeen(key []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.distrusted || f.filter.Test(key)
}

func (f *seenFilter) Add(key []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.Add(key)
}
