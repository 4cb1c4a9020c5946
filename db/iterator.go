package db

import "io"

// Iterator walks a database's key-value pairs in ascending key order. It must
// be closed after use and cannot be shared between goroutines.
type Iterator interface {
	io.Closer

	// Valid returns true if the iterator is positioned at a key-value pair.
	Valid() bool

	// Next moves the iterator forward and reports whether it is still valid.
	// Once invalid, the iterator remains invalid.
	Next() bool

	// Seek positions the iterator at the given key if present, otherwise at
	// the next key in lexicographical order.
	Seek(key []byte) bool

	// Key returns the key at the current position.
	Key() []byte

	// Value returns the value at the current position.
	Value() ([]byte, error)
}
