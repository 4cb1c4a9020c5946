package db

import "errors"

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrConflict    = errors.New("transaction conflict")
)
