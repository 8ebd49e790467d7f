package model

import "time"

// Upload tracks a raw blob from registration until the pipeline has turned it
// into (or refreshed) a Document. Uploads are kept after success for audit.
type Upload struct {
	ID         string    `json:"id"`
	BlobRef    string    `json:"blobRef"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	MimeType   string    `json:"mimeType"`
	Scope      Scope     `json:"scope"`
	ProjectID  string    `json:"projectId,omitempty"`
	DocumentID string    `json:"documentId,omitempty"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	DocumentNumber string   `json:"documentNumber,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// UploadFilter narrows upload listings.
type UploadFilter struct {
	ProjectID string
	Status    Status
	Limit     int
}
