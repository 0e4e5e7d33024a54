package models

import "time"

// Document is the Firestore record for one OCR extraction job.
type Document struct {
	FileHash            string    `firestore:"fileHash,omitempty"`
	OriginalFilename    string    `firestore:"originalFilename,omitempty"`
	Status              string    `firestore:"status,omitempty"`
	ErrorDetails        string    `firestore:"errorDetails,omitempty"`
	PageCount           int       `firestore:"pageCount,omitempty"`
	PagesCompleted      int       `firestore:"pagesCompleted"`
	FailedPages         int       `firestore:"failedPages"`
	AverageConfidence   *float64  `firestore:"averageConfidence"`
	Language            string    `firestore:"language,omitempty"`
	ReportGCSUri        string    `firestore:"reportGcsUri,omitempty"`
	TextGCSUri          string    `firestore:"textGcsUri,omitempty"`
	WorkflowExecutionID string    `firestore:"workflowExecutionId,omitempty"`
	CreatedAt           time.Time `firestore:"createdAt,omitempty"`
}

// Job statuses written to Document.Status.
const (
	StatusValidating = "VALIDATING"
	StatusExtracting = "EXTRACTING"
	StatusCompleted  = "COMPLETED"
	StatusPartial    = "PARTIAL"
	StatusFailed     = "FAILED"
)
