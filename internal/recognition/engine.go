// Package recognition adapts OCR engines to a single Recognize operation.
// Engines are a closed set chosen at configuration time (see New); each is
// wrapped in an Adapter that enforces the configured language table and
// normalizes confidences and errors.
package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"math"
	"slices"
	"strings"

	"github.com/Lllllllleong/documentocr/internal/models"
)

// Result is recognized page text with the engine's confidence in [0, 1].
type Result struct {
	Text       string
	Confidence float64
}

// Engine is one backing OCR implementation.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img *models.PageImage, language string) (Result, error)
}

// Adapter guards an Engine with an explicit language table. Codes outside
// the table fail with ErrUnsupportedLanguage instead of falling back to a
// default, so callers always know what was recognized.
type Adapter struct {
	engine    Engine
	languages []string
}

// Supported wraps engine so that only the given language codes are accepted.
// Multi-language requests such as "eng+vie" need every part to be listed.
func Supported(engine Engine, languages ...string) *Adapter {
	normalized := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			normalized = append(normalized, l)
		}
	}
	return &Adapter{engine: engine, languages: normalized}
}

func (a *Adapter) Name() string { return a.engine.Name() }

// Languages returns the accepted language codes.
func (a *Adapter) Languages() []string { return slices.Clone(a.languages) }

// Supports reports whether every part of language is in the table.
func (a *Adapter) Supports(language string) bool {
	parts := strings.Split(strings.ToLower(language), "+")
	for _, p := range parts {
		if p == "" || !slices.Contains(a.languages, p) {
			return false
		}
	}
	return len(parts) > 0
}

func (a *Adapter) Recognize(ctx context.Context, img *models.PageImage, language string) (Result, error) {
	if !a.Supports(language) {
		return Result{}, fmt.Errorf("%w: %q (engine %s supports %s)", models.ErrUnsupportedLanguage, language, a.engine.Name(), strings.Join(a.languages, ", "))
	}
	if img == nil || img.Image == nil || img.Width() == 0 || img.Height() == 0 {
		return Result{}, fmt.Errorf("%w: empty page image", models.ErrRecognitionFailure)
	}

	res, err := a.engine.Recognize(ctx, img, strings.ToLower(language))
	if err != nil {
		if models.KindOf(err) == "" {
			return Result{}, fmt.Errorf("%w: %s: %v", models.ErrRecognitionFailure, a.engine.Name(), err)
		}
		return Result{}, err
	}
	res.Text = strings.TrimSpace(res.Text)
	res.Confidence = clamp(res.Confidence)
	return res, nil
}

// Close releases the engine if it holds resources.
func (a *Adapter) Close() error {
	if c, ok := a.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// meanConfidence averages per-word scores reported on a 0–100 scale.
func meanConfidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return clamp(sum / float64(len(scores)) / 100)
}

func encodePNG(img *models.PageImage) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Image); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", img.Page, err)
	}
	return buf.Bytes(), nil
}
