package models

import "time"

// ClickEvent represents a single redirect resolution published to the
// analytics stream. Events are ephemeral: they are never written to the
// URL store. Country and city stay empty here; a downstream enrichment
// step fills them in.
type ClickEvent struct {
	// EventID is a random idempotency key assigned at publish time.
	EventID   string    `json:"event_id"`
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
}
