package db

import (
	"errors"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var ErrDiscardedTransaction = errors.New("discarded transaction")

type pebbleDB struct {
	pebble   *pebble.DB
	wMutex   *sync.Mutex
	listener EventListener
}

type pebbleTxn struct {
	batch    *pebble.Batch
	snapshot *pebble.Snapshot
	lock     *sync.Mutex
	listener EventListener
}

// New opens a database at the given path.
func New(path string, logger pebble.Logger) (DB, error) {
	return newPebble(path, &pebble.Options{
		Logger: logger,
	})
}

// NewMemDB opens a new in-memory database.
func NewMemDB() (DB, error) {
	return newPebble("", &pebble.Options{
		FS: vfs.NewMem(),
	})
}

// NewTestDB opens a new in-memory pebble database, panics on error.
func NewTestDB() DB {
	database, err := NewMemDB()
	if err != nil {
		panic(err)
	}
	return database
}

func newPebble(path string, options *pebble.Options) (DB, error) {
	pDB, err := pebble.Open(path, options)
	if err != nil {
		return nil, err
	}
	return &pebbleDB{
		pebble: pDB,
		wMutex: new(sync.Mutex),
	}, nil
}

// WithListener registers an EventListener on the database.
func (d *pebbleDB) WithListener(listener EventListener) DB {
	d.listener = listener
	return d
}

// NewTransaction : see db.DB.NewTransaction. Update transactions hold the
// database's write mutex until committed or discarded, serializing writers.
func (d *pebbleDB) NewTransaction(update bool) Transaction {
	txn := &pebbleTxn{listener: d.listener}
	if update {
		d.wMutex.Lock()
		txn.lock = d.wMutex
		txn.batch = d.pebble.NewIndexedBatch()
	} else {
		txn.snapshot = d.pebble.NewSnapshot()
	}
	return txn
}

// View : see db.DB.View
func (d *pebbleDB) View(fn func(txn Transaction) error) error {
	txn := d.NewTransaction(false)
	defer discardTxnOnPanic(txn)
	defer txn.Discard()

	return fn(txn)
}

// Update : see db.DB.Update
func (d *pebbleDB) Update(fn func(txn Transaction) error) error {
	txn := d.NewTransaction(true)
	defer discardTxnOnPanic(txn)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// Impl : see db.DB.Impl
func (d *pebbleDB) Impl() any {
	return d.pebble
}

// Close : see io.Closer.Close
func (d *pebbleDB) Close() error {
	return d.pebble.Close()
}

func discardTxnOnPanic(txn Transaction) {
	if p := recover(); p != nil {
		txn.Discard()
		panic(p)
	}
}

// Discard : see db.Transaction.Discard
func (t *pebbleTxn) Discard() error {
	if t.batch != nil {
		if err := t.batch.Close(); err != nil {
			return err
		}
		t.batch = nil
	}
	if t.snapshot != nil {
		t.snapshot.Close()
		t.snapshot = nil
	}
	if t.lock != nil {
		t.lock.Unlock()
		t.lock = nil
	}
	return nil
}

// Commit : see db.Transaction.Commit
func (t *pebbleTxn) Commit() error {
	defer t.Discard()
	if t.batch == nil {
		return ErrDiscardedTransaction
	}
	if t.listener != nil {
		t.listener.OnCommit()
	}
	return t.batch.Commit(pebble.Sync)
}

// Set : see db.Transaction.Set
func (t *pebbleTxn) Set(key, val []byte) error {
	if t.batch == nil {
		return errors.New("read only transaction")
	} else if len(key) == 0 {
		return errors.New("empty key")
	}
	if t.listener != nil {
		t.listener.OnIO(true)
	}
	return t.batch.Set(key, val, pebble.Sync)
}

// Delete : see db.Transaction.Delete
func (t *pebbleTxn) Delete(key []byte) error {
	if t.batch == nil {
		return errors.New("read only transaction")
	}
	if t.listener != nil {
		t.listener.OnIO(true)
	}
	return t.batch.Delete(key, pebble.Sync)
}

// Get : see db.Transaction.Get
func (t *pebbleTxn) Get(key []byte, cb func([]byte) error) error {
	var (
		val    []byte
		closer io.Closer
		err    error
	)
	if t.listener != nil {
		t.listener.OnIO(false)
	}
	switch {
	case t.batch != nil:
		val, closer, err = t.batch.Get(key)
	case t.snapshot != nil:
		val, closer, err = t.snapshot.Get(key)
	default:
		return ErrDiscardedTransaction
	}
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	defer closer.Close()
	return cb(val)
}

// NewIterator : see db.Transaction.NewIterator
func (t *pebbleTxn) NewIterator() (Iterator, error) {
	var (
		iter *pebble.Iterator
		err  error
	)
	switch {
	case t.batch != nil:
		iter, err = t.batch.NewIter(nil)
	case t.snapshot != nil:
		iter, err = t.snapshot.NewIter(nil)
	default:
		return nil, ErrDiscardedTransaction
	}
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{iter: iter}, nil
}

// Impl : see db.Transaction.Impl
func (t *pebbleTxn) Impl() any {
	switch {
	case t.batch != nil:
		return t.batch
	case t.snapshot != nil:
		return t.snapshot
	default:
		return nil
	}
}

type pebbleIterator struct {
	iter *pebble.Iterator
}

func (i *pebbleIterator) Valid() bool {
	return i.iter.Valid()
}

func (i *pebbleIterator) Next() bool {
	return i.iter.Next()
}

func (i *pebbleIterator) Seek(key []byte) bool {
	return i.iter.SeekGE(key)
}

func (i *pebbleIterator) Key() []byte {
	return i.iter.Key()
}

func (i *pebbleIterator) Value() ([]byte, error) {
	return i.iter.ValueAndErr()
}

func (i *pebbleIterator) Close() error {
	return i.iter.Close()
}
