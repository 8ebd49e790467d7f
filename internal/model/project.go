package model

import "time"

// Project groups project-scoped documents. IndexEntryID doubles as the
// project's index namespace once the project has been indexed.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Contractor   string    `json:"contractor,omitempty"`
	IndexEntryID string    `json:"indexEntryId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
