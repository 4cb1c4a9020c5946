package db

import (
	"errors"
	"time"
)

const (
	maxUpdateAttempts = 5
	baseRetryBackoff  = 5 * time.Millisecond
)

// UpdateWithRetry runs fn in an Update transaction, retrying the whole
// transaction on ErrConflict with doubling backoff. After the attempt budget
// is exhausted the conflict is returned to the caller. An aborted attempt
// leaves no side effects, so fn must be safe to re-run.
func UpdateWithRetry(d DB, fn func(txn Transaction) error) error {
	backoff := baseRetryBackoff
	var err error
	for range maxUpdateAttempts {
		if err = d.Update(fn); !errors.Is(err, ErrConflict) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}
