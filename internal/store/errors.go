package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrStaleStatus is returned by conditional updates when the record no
	// longer carries the expected status. Callers may re-fetch and retry.
	ErrStaleStatus = errors.New("stale status")
)
