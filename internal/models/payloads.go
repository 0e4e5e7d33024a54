package models

// These structs define the JSON payloads exchanged with the HTTP entry point
// and the downstream workflow.

// PageExtractorRequest is the input for the page-extractor function.
type PageExtractorRequest struct {
	GCSUri      string  `json:"gcsUri"`
	Language    string  `json:"language,omitempty"`
	Scale       float64 `json:"scale,omitempty"`
	ForceOCR    bool    `json:"forceOcr,omitempty"`
	Concurrency int     `json:"concurrency,omitempty"`
	ExecutionID string  `json:"executionId,omitempty"`
}

// PageExtractorResponse is the output of the page-extractor function.
type PageExtractorResponse struct {
	Status  string            `json:"status"`
	Summary string            `json:"summary"`
	Report  *ExtractionReport `json:"report"`
}

// WorkflowPayload is the argument handed to the downstream workflow once a
// document finished extraction.
type WorkflowPayload struct {
	DocumentID   string `json:"documentId"`
	PageCount    int    `json:"pageCount"`
	FailedPages  int    `json:"failedPages"`
	ReportGCSUri string `json:"reportGcsUri"`
	TextGCSUri   string `json:"textGcsUri"`
}
