package buffer

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/stakes/domain"
)

// Item is a task event waiting to be written to the primary journal.
type Item struct {
	ID        string           `json:"id"`
	Event     domain.TaskEvent `json:"event"`
	Retries   int              `json:"retries"`
	LastError string           `json:"last_error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.Event.ID == "" {
		i.Event.ID = uuid.NewString()
	}
	if i.ID == "" {
		i.ID = i.Event.ID
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
