package model

// ResultsExport is the top-level JSON structure for the results export
// command. It dumps the shared analytics namespace together with the
// deployment metadata the results were collected under.
type ResultsExport struct {
	AppID      string   `json:"app_id"`
	ExamID     string   `json:"exam_id,omitempty"`
	ExportedAt int64    `json:"exported_at"`
	Count      int      `json:"count"`
	Results    []Result `json:"results"`
}
