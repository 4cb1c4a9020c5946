package db

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// memDB is an in-memory DB used in tests. Writes go to a pending overlay that
// is folded into the backing map on Commit, under the same writer mutex the
// pebble implementation uses, so transactional semantics match production.
type memDB struct {
	mu       sync.RWMutex
	storage  map[string][]byte
	wMutex   *sync.Mutex
	listener EventListener
}

// NewMemTestDB returns an empty in-memory database, for tests.
func NewMemTestDB() DB {
	return &memDB{
		storage: make(map[string][]byte),
		wMutex:  new(sync.Mutex),
	}
}

func (d *memDB) WithListener(listener EventListener) DB {
	d.listener = listener
	return d
}

func (d *memDB) NewTransaction(update bool) Transaction {
	txn := &memTxn{db: d, listener: d.listener}
	if update {
		d.wMutex.Lock()
		txn.lock = d.wMutex
		txn.pending = make(map[string]*[]byte)
	} else {
		d.mu.RLock()
		txn.view = make(map[string][]byte, len(d.storage))
		for k, v := range d.storage {
			txn.view[k] = v
		}
		d.mu.RUnlock()
	}
	return txn
}

func (d *memDB) View(fn func(txn Transaction) error) error {
	txn := d.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

func (d *memDB) Update(fn func(txn Transaction) error) error {
	txn := d.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

func (d *memDB) Impl() any {
	return d.storage
}

func (d *memDB) Close() error {
	return nil
}

type memTxn struct {
	db       *memDB
	lock     *sync.Mutex
	pending  map[string]*[]byte // nil value pointer marks a delete
	view     map[string][]byte  // read-only snapshot
	listener EventListener
}

func (t *memTxn) Discard() error {
	t.pending = nil
	t.view = nil
	if t.lock != nil {
		t.lock.Unlock()
		t.lock = nil
	}
	return nil
}

func (t *memTxn) Commit() error {
	if t.pending == nil {
		return ErrDiscardedTransaction
	}
	if t.listener != nil {
		t.listener.OnCommit()
	}
	t.db.mu.Lock()
	for k, v := range t.pending {
		if v == nil {
			delete(t.db.storage, k)
		} else {
			t.db.storage[k] = *v
		}
	}
	t.db.mu.Unlock()
	return t.Discard()
}

func (t *memTxn) Set(key, val []byte) error {
	if t.pending == nil {
		return errors.New("read only transaction")
	} else if len(key) == 0 {
		return errors.New("empty key")
	}
	if t.listener != nil {
		t.listener.OnIO(true)
	}
	cp := append([]byte{}, val...)
	t.pending[string(key)] = &cp
	return nil
}

func (t *memTxn) Delete(key []byte) error {
	if t.pending == nil {
		return errors.New("read only transaction")
	}
	if t.listener != nil {
		t.listener.OnIO(true)
	}
	t.pending[string(key)] = nil
	return nil
}

func (t *memTxn) Get(key []byte, cb func([]byte) error) error {
	if t.listener != nil {
		t.listener.OnIO(false)
	}
	if t.pending != nil {
		if v, found := t.pending[string(key)]; found {
			if v == nil {
				return ErrKeyNotFound
			}
			return cb(*v)
		}
		t.db.mu.RLock()
		v, found := t.db.storage[string(key)]
		t.db.mu.RUnlock()
		if !found {
			return ErrKeyNotFound
		}
		return cb(v)
	}
	if t.view != nil {
		v, found := t.view[string(key)]
		if !found {
			return ErrKeyNotFound
		}
		return cb(v)
	}
	return ErrDiscardedTransaction
}

func (t *memTxn) NewIterator() (Iterator, error) {
	merged := make(map[string][]byte)
	switch {
	case t.pending != nil:
		t.db.mu.RLock()
		for k, v := range t.db.storage {
			merged[k] = v
		}
		t.db.mu.RUnlock()
		for k, v := range t.pending {
			if v == nil {
				delete(merged, k)
			} else {
				merged[k] = *v
			}
		}
	case t.view != nil:
		merged = t.view
	default:
		return nil, ErrDiscardedTransaction
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &memIterator{storage: merged, keys: keys, pos: -1}, nil
}

func (t *memTxn) Impl() any {
	return t.pending
}

type memIterator struct {
	storage map[string][]byte
	keys    []string
	pos     int
}

func (i *memIterator) Valid() bool {
	return i.pos >= 0 && i.pos < len(i.keys)
}

func (i *memIterator) Next() bool {
	i.pos++
	return i.Valid()
}

func (i *memIterator) Seek(key []byte) bool {
	i.pos = sort.Search(len(i.keys), func(n int) bool {
		return strings.Compare(i.keys[n], string(key)) >= 0
	})
	return i.Valid()
}

func (i *memIterator) Key() []byte {
	return []byte(i.keys[i.pos])
}

func (i *memIterator) Value() ([]byte, error) {
	return i.storage[i.keys[i.pos]], nil
}

func (i *memIterator) Close() error {
	return nil
}
