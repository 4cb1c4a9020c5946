package db

import "io"

// DB is a key-value store offering atomicity at the granularity of a single
// transaction. Update transactions are serialized by the implementation, so a
// read-modify-write performed inside one Update callback can never interleave
// with another writer.
type DB interface {
	io.Closer

	// NewTransaction returns a transaction on this database. Update
	// transactions should be short-lived since they block other writers.
	NewTransaction(update bool) Transaction

	// View creates a read-only transaction, passes it to fn and discards it.
	View(fn func(txn Transaction) error) error

	// Update creates a read-write transaction, passes it to fn and commits
	// it if fn returns nil. Any error from fn discards the transaction.
	Update(fn func(txn Transaction) error) error

	// WithListener registers an EventListener notified on IO and commits.
	WithListener(listener EventListener) DB

	// Impl returns the underlying database object.
	Impl() any
}

// Transaction provides an atomic view over a DB.
type Transaction interface {
	// Discard drops all pending writes. Discarding a committed or already
	// discarded transaction is a no-op.
	Discard() error

	// Commit flushes all pending writes to the database.
	Commit() error

	Set(key, val []byte) error
	Delete(key []byte) error

	// Get calls cb with the value for key, if any. The value is only valid
	// for the duration of the callback. Returns ErrKeyNotFound if the key
	// is absent.
	Get(key []byte, cb func([]byte) error) error

	// NewIterator returns an iterator over the transaction's view of the
	// database in ascending key order.
	NewIterator() (Iterator, error)

	// Impl returns the underlying transaction object.
	Impl() any
}
