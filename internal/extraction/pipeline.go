package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/Lllllllleong/documentocr/internal/recognition"
)

// Recognizer is the recognition capability the pipeline needs;
// *recognition.Adapter satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, img *models.PageImage, language string) (recognition.Result, error)
}

// Pipeline decides per page between native extraction and rasterize plus
// recognize.
type Pipeline struct {
	Rasterizer document.Rasterizer
	Text       document.TextExtractor
	Engine     Recognizer
}

// ProcessPage extracts one page. Failures are recorded in the result, never
// returned.
func (p *Pipeline) ProcessPage(ctx context.Context, doc document.Document, page int, opts Options) models.PageResult {
	res, _ := p.process(ctx, doc, page, opts.withDefaults())
	return res
}

// process is ProcessPage for pre-defaulted options. The error is non-nil
// only when the document handle itself went bad.
func (p *Pipeline) process(ctx context.Context, doc document.Document, page int, opts Options) (models.PageResult, error) {
	log := opts.Logger.With("page", page)

	if !opts.ForceOCR {
		text, err := p.Text.ExtractNative(ctx, doc, page)
		if err != nil {
			return failure(log, page, models.StageNative, err)
		}
		if hasText(text, opts.Whitespace) {
			log.Debug("Native text found.", "chars", len(text))
			return models.PageResult{Page: page, Text: text, Source: models.SourceNative}, nil
		}
	}

	img, err := p.Rasterizer.Render(ctx, doc, page, opts.Scale)
	if err != nil {
		return failure(log, page, models.StageRender, err)
	}
	out, err := p.Engine.Recognize(ctx, img, opts.Language)
	if err != nil {
		return failure(log, page, models.StageRecognize, err)
	}
	log.Debug("Page recognized.", "confidence", out.Confidence)
	return models.PageResult{
		Page:       page,
		Text:       out.Text,
		Confidence: models.Float(out.Confidence),
		Source:     models.SourceRecognized,
	}, nil
}

func hasText(text string, policy WhitespacePolicy) bool {
	if policy == WhitespaceKeep {
		return text != ""
	}
	return strings.TrimSpace(text) != ""
}

func failure(log *slog.Logger, page int, stage models.Stage, err error) (models.PageResult, error) {
	if errors.Is(err, models.ErrDocumentInvalid) {
		return models.FailedPage(page, classify(stage, err), stage, err), fmt.Errorf("page %d: %w", page, err)
	}
	kind := classify(stage, err)
	log.Warn("Page failed.", "stage", stage, "kind", kind, "error", err)
	return models.FailedPage(page, kind, stage, err), nil
}

// classify maps err to an ErrorKind, falling back to the stage default for
// errors that wrap no known sentinel.
func classify(stage models.Stage, err error) models.ErrorKind {
	if kind := models.KindOf(err); kind != "" {
		return kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return models.KindCancelled
	}
	if stage == models.StageRecognize {
		return models.KindRecognitionFailure
	}
	return models.KindRenderFailure
}
