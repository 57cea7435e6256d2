package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new shortened URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when an attempt is made to retrieve
	// a URL using a short code that doesn't exist.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when the stored record exists but its
	// expiration time has passed. Distinct from ErrURLNotFound so that
	// callers can report 410 rather than 404.
	ErrURLExpired = errors.New("url expired")
)
