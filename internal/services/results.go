package services

import (
	"fmt"

	"github.com/Lllllllleong/documentocr/internal/extraction"
	"github.com/Lllllllleong/documentocr/internal/models"
)

// pageSeparator is written between pages in text.txt.
const pageSeparator = "\n\f\n"

func resultObjects(docID string) (report, text string) {
	return fmt.Sprintf("%s/report.json", docID), fmt.Sprintf("%s/text.txt", docID)
}

func gcsURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// finalStatus is COMPLETED when every page produced text and PARTIAL
// otherwise.
func finalStatus(r *models.ExtractionReport) string {
	if r.FailedPages > 0 {
		return models.StatusPartial
	}
	return models.StatusCompleted
}

func responseStatus(r *models.ExtractionReport) string {
	if r.FailedPages > 0 {
		return "partial"
	}
	return "success"
}

// requestOptions overlays the non-zero fields of req on the service defaults.
func requestOptions(base extraction.Options, req *models.PageExtractorRequest) extraction.Options {
	opts := base
	if req.Language != "" {
		opts.Language = req.Language
	}
	if req.Scale != 0 {
		opts.Scale = req.Scale
	}
	if req.ForceOCR {
		opts.ForceOCR = true
	}
	if req.Concurrency > 0 {
		opts.Concurrency = req.Concurrency
	}
	return opts
}
