package llm

import (
	"strings"
)

// OpenAISystemPrompt is sent as the system message by chat-style providers.
const OpenAISystemPrompt = "You extract data from construction inspection reports. Output valid JSON only."

const workItemShape = `{"category": "trade label as written (e.g. חשמל, אינסטלציה, מיזוג)", ` +
	`"location": "room or area", "description": "what was inspected", ` +
	`"status": "status text as written", "notes": "remarks, defects, missing parts", "hasPhoto": true|false}`

const outputRules = "Rules: copy Hebrew text exactly as it appears. Dates as YYYY-MM-DD. " +
	"Never output null; omit a field that is not present. Return ONLY the JSON object, no prose."

// Prompts builds the extraction prompts for one project.
type Prompts struct {
	ProjectName string
	Apartments  []string // expected apartment numbers, used as a hint only
}

func (p Prompts) context() string {
	var b strings.Builder
	b.WriteString("The document is a periodic site supervision report for a residential renovation and extension project")
	if p.ProjectName != "" {
		b.WriteString(" (")
		b.WriteString(p.ProjectName)
		b.WriteString(")")
	}
	b.WriteString(". It is written in Hebrew and organised by apartment (דירה), then by trade.")
	if len(p.Apartments) > 0 {
		b.WriteString(" Apartments usually present: ")
		b.WriteString(strings.Join(p.Apartments, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// Full asks for the whole report in a single answer.
func (p Prompts) Full() string {
	parts := []string{
		p.context(),
		"Extract every apartment and every work item. Return JSON of this shape:",
		`{"reportDate": "YYYY-MM-DD", "inspector": "name", "projectName": "name", ` +
			`"apartments": [{"apartmentNumber": "3", "workItems": [` + workItemShape + `], ` +
			`"inspectionDates": {"trade label": "date as written"}}], ` +
			`"developmentItems": [` + workItemShape + `], ` +
			`"progressTracking": [{"apartmentNumber": "3", "category": "trade label", "inspectionDate": "date as written", "status": "status text"}]}`,
		"developmentItems are site-level items that belong to no apartment (פיתוח, common areas).",
		"progressTracking is the summary table of inspection dates per apartment and trade, if the report has one.",
		outputRules,
	}
	return strings.Join(parts, "\n")
}

// ApartmentList asks only for the apartment numbers present in the report.
func (p Prompts) ApartmentList() string {
	return strings.Join([]string{
		p.context(),
		"List the numbers of all apartments that have a section in this report.",
		`Return JSON: {"apartments": ["1", "3"]}`,
		outputRules,
	}, "\n")
}

// Metadata asks for the report header and the site-level sections.
func (p Prompts) Metadata() string {
	return strings.Join([]string{
		p.context(),
		"Extract only the report header, the site-level items and the progress tracking table. Skip per-apartment work items.",
		`Return JSON: {"reportMetadata": {"reportDate": "YYYY-MM-DD", "inspector": "name", "projectName": "name"}, ` +
			`"developmentItems": [` + workItemShape + `], ` +
			`"progressTracking": [{"apartmentNumber": "3", "category": "trade label", "inspectionDate": "date as written", "status": "status text"}]}`,
		outputRules,
	}, "\n")
}

// Chunk asks for the full data of the given apartments only.
func (p Prompts) Chunk(apartments []string) string {
	return strings.Join([]string{
		p.context(),
		"Extract the work items and inspection dates ONLY for apartments " + strings.Join(apartments, ", ") + ". Ignore all other apartments.",
		`Return JSON: {"apartmentsData": [{"apartmentNumber": "3", "workItems": [` + workItemShape + `], ` +
			`"inspectionDates": {"trade label": "date as written"}}]}`,
		outputRules,
	}, "\n")
}
