package model

import "time"

// ExportSort orders the rows of a round export.
type ExportSort string

// Round export orderings.
const (
	SortByName  ExportSort = "name"
	SortByScore ExportSort = "score"
)

// Valid reports whether s is a known ordering.
func (s ExportSort) Valid() bool { return s == SortByName || s == SortByScore }

// ExportJob asks for a round export to be rendered and mailed.
type ExportJob struct {
	ID             string     `json:"job_id"`
	RoundID        int64      `json:"round_id"`
	SortBy         ExportSort `json:"sort_by"`
	Recipients     []string   `json:"recipients"`
	IdempotencyKey string     `json:"idempotency_key"`
	RequestedBy    string     `json:"requested_by,omitempty"`
	EnqueuedAt     time.Time  `json:"enqueued_at"`
}
