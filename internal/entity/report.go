package entity

import (
	"time"

	"github.com/google/uuid"
)

// Report represents one ingested inspection report for data transfer between layers.
type Report struct {
	ID             uuid.UUID `json:"id"`
	ProjectID      uuid.UUID `json:"project_id"`
	FileName       string    `json:"file_name"`
	FilePath       string    `json:"file_path"`
	ContentHash    string    `json:"content_hash,omitempty"`
	ReportDate     time.Time `json:"report_date"`
	Inspector      *string   `json:"inspector,omitempty"`
	RawExtraction  *string   `json:"raw_extraction,omitempty"`
	PageCount      int       `json:"page_count"`
	Processed      bool      `json:"processed"`
	HasErrors      bool      `json:"has_errors"`
	ErrorDetails   *string   `json:"error_details,omitempty"`
	HasWarnings    bool      `json:"has_warnings"`
	WarningDetails *string   `json:"warning_details,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Finalized reports are the ones the progress timeline is built from.
func (r *Report) Finalized() bool {
	return r.Processed || r.HasErrors
}
