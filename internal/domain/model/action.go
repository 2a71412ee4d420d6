package model

import "time"

// Action is one row of the audit trail: who did what to which record.
// Written in the same transaction as the mutation it describes.
type Action struct {
	ID         int64
	Model      string // table-ish name, e.g. "payments"
	ModelID    int64
	Action     string // create | update | delete | use
	Parameters map[string]any
	CreatedAt  time.Time
}
