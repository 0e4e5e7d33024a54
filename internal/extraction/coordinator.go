// Package extraction turns a paginated document into per-page text. Pages
// with embedded text are read natively; the rest are rasterized and sent to
// a recognition engine. Pages run on a bounded worker pool and failures stay
// confined to the page that produced them.
package extraction

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/models"
	"golang.org/x/sync/errgroup"
)

// Extractor drives the page pipeline over whole documents.
type Extractor struct {
	Loader document.Loader
	Pipeline
}

// New wires an Extractor from its collaborators.
func New(loader document.Loader, rasterizer document.Rasterizer, text document.TextExtractor, engine Recognizer) *Extractor {
	return &Extractor{
		Loader: loader,
		Pipeline: Pipeline{
			Rasterizer: rasterizer,
			Text:       text,
			Engine:     engine,
		},
	}
}

// Extract opens src and extracts every page. See ExtractDocument.
func (e *Extractor) Extract(ctx context.Context, src document.Source, opts Options) (*models.ExtractionReport, error) {
	if e.Loader == nil {
		return nil, fmt.Errorf("%w: no loader configured", models.ErrOpenDocument)
	}
	doc, err := e.Loader.Open(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src, err)
	}
	return e.ExtractDocument(ctx, doc, opts)
}

// ExtractDocument extracts every page of doc and closes it once all workers
// have returned.
//
// Page failures are recorded in the report. Cancelling ctx stops dispatch;
// pages already running finish and the rest are reported as Cancelled, with
// a nil error. A document-scoped failure (no pages, or the handle going bad
// mid-run) returns a nil report and the error.
func (e *Extractor) ExtractDocument(ctx context.Context, doc document.Document, opts Options) (*models.ExtractionReport, error) {
	opts = opts.withDefaults()
	defer func() {
		if err := doc.Close(); err != nil {
			opts.Logger.Warn("Failed to close document.", "error", err)
		}
	}()

	total := doc.PageCount()
	if total <= 0 {
		return nil, models.ErrEmptyDocument
	}
	log := opts.Logger.With("pageCount", total, "language", opts.Language)
	log.Info("Starting extraction.", "concurrency", opts.Concurrency, "forceOcr", opts.ForceOCR, "scale", opts.Scale)
	start := time.Now()

	results := make([]models.PageResult, total)
	done := make([]bool, total)

	var (
		aborted  atomic.Bool
		abortErr error
		abortMu  sync.Mutex
	)
	abort := func(err error) {
		abortMu.Lock()
		defer abortMu.Unlock()
		if abortErr == nil {
			abortErr = err
		}
		aborted.Store(true)
	}

	var (
		progressMu sync.Mutex
		completed  int
	)
	report := func(res models.PageResult) {
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(models.ProgressEvent{Completed: completed, Total: total, Result: res})
		}
	}

	var eg errgroup.Group
	eg.SetLimit(opts.Concurrency)
	for page := 1; page <= total; page++ {
		if ctx.Err() != nil || aborted.Load() {
			break
		}
		eg.Go(func() error {
			if ctx.Err() != nil || aborted.Load() {
				return nil
			}
			res, err := e.process(ctx, doc, page, opts)
			if err != nil {
				abort(err)
				return nil
			}
			results[page-1] = res
			done[page-1] = true
			report(res)
			return nil
		})
	}
	_ = eg.Wait()

	if abortErr != nil {
		log.Error("Extraction aborted.", "error", abortErr)
		return nil, abortErr
	}

	cancelled := 0
	for i := range results {
		if !done[i] {
			results[i] = models.FailedPage(i+1, models.KindCancelled, models.StageDispatch, cancelCause(ctx))
			cancelled++
		}
	}

	out := models.NewReport(results, opts.Language)
	log.Info("Extraction finished.",
		"failedPages", out.FailedPages,
		"cancelledPages", cancelled,
		"duration", time.Since(start).String(),
	)
	return out, nil
}

func cancelCause(ctx context.Context) error {
	if err := context.Cause(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrCancelled, err)
	}
	return models.ErrCancelled
}
