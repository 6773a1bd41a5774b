package llm

// WorkItem is one inspected line as returned by a provider.
type WorkItem struct {
	Category    string `json:"category"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	HasPhoto    bool   `json:"hasPhoto,omitempty"`
}

// Apartment groups the work items and inspection dates of one unit.
type Apartment struct {
	ApartmentNumber string            `json:"apartmentNumber"`
	WorkItems       []WorkItem        `json:"workItems"`
	InspectionDates map[string]string `json:"inspectionDates,omitempty"` // category label -> date text
}

// ProgressEntry is a row of the report's progress tracking table.
type ProgressEntry struct {
	ApartmentNumber string `json:"apartmentNumber"`
	Category        string `json:"category"`
	InspectionDate  string `json:"inspectionDate"`
	Status          string `json:"status,omitempty"`
}

// ReportPayload is the normalized shape we want from the providers.
type ReportPayload struct {
	ReportDate       string          `json:"reportDate,omitempty"` // YYYY-MM-DD
	Inspector        string          `json:"inspector,omitempty"`
	ProjectName      string          `json:"projectName,omitempty"`
	Apartments       []Apartment     `json:"apartments"`
	DevelopmentItems []WorkItem      `json:"developmentItems,omitempty"`
	ProgressTracking []ProgressEntry `json:"progressTracking,omitempty"`
}

// ItemCount is the number of apartment work items plus site-level items.
func (p *ReportPayload) ItemCount() int {
	if p == nil {
		return 0
	}
	n := len(p.DevelopmentItems)
	for _, a := range p.Apartments {
		n += len(a.WorkItems)
	}
	return n
}
