package model

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrStaleAttempt is returned by Finalize and Reclaim when the claim is
	// no longer the record's current processing attempt.
	ErrStaleAttempt   = errors.New("stale attempt")
	ErrInvalidOutcome = errors.New("invalid outcome")
	ErrBlobNotFound   = errors.New("blob not found")
)
