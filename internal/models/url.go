package models

import "time"

// StatusActive is the only status assigned at creation. The column is
// reserved for future soft-delete or suspend states.
const StatusActive = "active"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code or key associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// ClickCount tracks the number of times the shortened URL has been resolved.
	ClickCount int64
	// IsCustom records whether the code was supplied by the caller.
	IsCustom bool
	// Status is the lifecycle state of the record, always StatusActive at creation.
	Status string
	// ExpiresAt is the optional absolute expiration time. Nil means the URL never expires.
	ExpiresAt *time.Time
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
}

// ExpiredAt reports whether the record has lapsed at the given time.
// Records without an expiration never lapse.
func (u *URL) ExpiredAt(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}
