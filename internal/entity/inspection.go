package entity

import (
	"time"

	"github.com/google/uuid"
)

// Inspection records when a category was inspected in an apartment, per report.
type Inspection struct {
	ID             uuid.UUID `json:"id"`
	ReportID       uuid.UUID `json:"report_id"`
	ApartmentID    uuid.UUID `json:"apartment_id"`
	Category       string    `json:"category"`
	InspectionDate time.Time `json:"inspection_date"`
	Status         *string   `json:"status,omitempty"`
}
