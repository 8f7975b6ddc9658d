package store

import "time"

// Snapshot is a consistent copy of the document taken under the store lock.
type Snapshot struct {
	Text      string    `json:"text"`
	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}
