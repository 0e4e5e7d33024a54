package models

import (
	"fmt"
	"strings"
)

// SourceKind records how a page's text was obtained.
type SourceKind string

const (
	SourceNative     SourceKind = "native"
	SourceRecognized SourceKind = "recognized"
)

// PageResult is the outcome for one page. Confidence is nil for native text
// and for failed pages.
type PageResult struct {
	Page       int        `json:"page"`
	Text       string     `json:"text"`
	Confidence *float64   `json:"confidence"`
	Source     SourceKind `json:"source,omitempty"`
	Error      *PageError `json:"error,omitempty"`
}

// Failed reports whether the page carries an error descriptor.
func (r PageResult) Failed() bool { return r.Error != nil }

// FailedPage builds the result for a page that could not be extracted.
func FailedPage(page int, kind ErrorKind, stage Stage, err error) PageResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return PageResult{
		Page:  page,
		Error: &PageError{Kind: kind, Stage: stage, Message: msg},
	}
}

// ExtractionReport aggregates the results of one extraction call.
// len(Results) always equals TotalPages.
type ExtractionReport struct {
	Results           []PageResult `json:"results"`
	TotalPages        int          `json:"totalPages"`
	FailedPages       int          `json:"failedPages"`
	AverageConfidence *float64     `json:"averageConfidence"`
	Language          string       `json:"language"`
}

// NewReport computes the aggregate fields from results already in page order.
func NewReport(results []PageResult, language string) *ExtractionReport {
	report := &ExtractionReport{
		Results:    results,
		TotalPages: len(results),
		Language:   language,
	}
	var sum float64
	var scored int
	for _, r := range results {
		if r.Failed() {
			report.FailedPages++
		}
		if r.Confidence != nil {
			sum += *r.Confidence
			scored++
		}
	}
	if scored > 0 {
		avg := sum / float64(scored)
		report.AverageConfidence = &avg
	}
	return report
}

// Text joins the text of every non-failed page in page order.
func (r *ExtractionReport) Text(separator string) string {
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Failed() {
			continue
		}
		parts = append(parts, res.Text)
	}
	return strings.Join(parts, separator)
}

// Summary renders the "N of M pages" line shown to users.
func (r *ExtractionReport) Summary() string {
	s := fmt.Sprintf("%d of %d pages extracted", r.TotalPages-r.FailedPages, r.TotalPages)
	if r.AverageConfidence != nil {
		s += fmt.Sprintf(" (average confidence %.2f)", *r.AverageConfidence)
	}
	return s
}

// ProgressEvent is delivered once per completed page. Completion order is not
// page order; use Result.Page to reorder.
type ProgressEvent struct {
	Completed int
	Total     int
	Result    PageResult
}

// Float returns a pointer to v, for building confidences.
func Float(v float64) *float64 { return &v }
