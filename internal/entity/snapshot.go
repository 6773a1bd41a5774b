package entity

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time copy of all reports, work items and inspections.
type Snapshot struct {
	ID              uuid.UUID `json:"id"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
	ReportCount     int       `json:"report_count"`
	WorkItemCount   int       `json:"work_item_count"`
	InspectionCount int       `json:"inspection_count"`
}

// SnapshotData is the captured content of a snapshot.
type SnapshotData struct {
	Reports     []*Report     `json:"reports"`
	WorkItems   []*WorkItem   `json:"work_items"`
	Inspections []*Inspection `json:"inspections"`
}
