package entity

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem is a single inspected line in a report. ApartmentID is nil for
// site-level (development) items.
type WorkItem struct {
	ID          uuid.UUID  `json:"id"`
	ReportID    uuid.UUID  `json:"report_id"`
	ApartmentID *uuid.UUID `json:"apartment_id,omitempty"`
	Category    string     `json:"category"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	HasPhoto    bool       `json:"has_photo"`
	CreatedAt   time.Time  `json:"created_at"`
}
