// Package sequencer issues strictly increasing integer identifiers per
// namespace from a store with no native auto-increment. The last issued id
// per namespace lives in a single counter document that is read, incremented
// and written back inside one transaction, so two concurrent callers can
// never consume the same integer.
package sequencer

import (
	"encoding/binary"
	"errors"

	"github.com/starcasthq/starcast/db"
)

// Sequencer namespaces.
const (
	Votes        = "votes"
	Contestants  = "contestants"
	Purchases    = "purchases"
	Competitions = "competitions"
)

type Sequencer struct {
	database db.DB
}

func New(database db.DB) *Sequencer {
	return &Sequencer{database: database}
}

// Next returns the next id in the namespace. A transaction aborted by
// contention is retried whole, with no side effects from the aborted attempt.
func (s *Sequencer) Next(namespace string) (uint64, error) {
	return s.reserve(namespace, 1)
}

// NextBlock reserves n consecutive ids in the namespace and returns the first
// of them. Bulk casting uses this to issue one id per purchased vote unit
// with a single counter transaction.
func (s *Sequencer) NextBlock(namespace string, n uint64) (uint64, error) {
	return s.reserve(namespace, n)
}

// Current returns the last issued id in the namespace, zero if none were
// issued yet.
func (s *Sequencer) Current(namespace string) (current uint64, err error) {
	err = s.database.View(func(txn db.Transaction) error {
		last, readErr := read(txn, namespace)
		if readErr != nil {
			if errors.Is(readErr, db.ErrKeyNotFound) {
				return nil
			}
			return readErr
		}
		current = last
		return nil
	})
	return current, err
}

func (s *Sequencer) reserve(namespace string, n uint64) (uint64, error) {
	var first uint64
	err := db.UpdateWithRetry(s.database, func(txn db.Transaction) error {
		last, err := read(txn, namespace)
		if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
			return err
		}
		first = last + 1

		lastBin := make([]byte, 8)
		binary.BigEndian.PutUint64(lastBin, last+n)
		return txn.Set(db.Counter.Key([]byte(namespace)), lastBin)
	})
	if err != nil {
		return 0, err
	}
	return first, nil
}

func read(txn db.Transaction, namespace string) (last uint64, err error) {
	err = txn.Get(db.Counter.Key([]byte(namespace)), func(val []byte) error {
		last = binary.BigEndian.Uint64(val)
		return nil
	})
	return last, err
}
