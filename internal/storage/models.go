package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UsageRecord is one caller's interaction count for a single UTC day.
type UsageRecord struct {
	Identifier        string
	Day               string
	InteractionCount  int
	LastInteractionAt time.Time
}
