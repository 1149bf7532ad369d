package database

import (
	"time"
)

// UpdateRecord is one subscription update outcome, success or failure.
// Failure rows carry the error text and keep Kind/Bytes at their zero values.
type UpdateRecord struct {
	ID        int64
	Section   string
	URL       string
	Kind      string
	Bytes     int
	Error     string
	CreatedAt time.Time
}
