package storage

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrVideoNotFound = errors.New("video not found")

	// ErrTokenMismatch is returned by the conditional refresh-token update
	// when the stored token no longer matches the expected one.
	ErrTokenMismatch = errors.New("refresh token mismatch")

	ErrCacheMiss = errors.New("cache miss")
)
