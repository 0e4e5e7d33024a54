//go:build !ocr

package recognition

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/documentocr/internal/models"
)

// TesseractEnabled reports whether Tesseract support was compiled in.
const TesseractEnabled = false

// Tesseract is a stub that fails every call with ErrOCRNotEnabled.
// Rebuild with -tags ocr to enable it.
type Tesseract struct{}

func NewTesseract(pageSegMode int) *Tesseract { return &Tesseract{} }

func (t *Tesseract) Name() string { return EngineTesseract }

func (t *Tesseract) Recognize(ctx context.Context, img *models.PageImage, language string) (Result, error) {
	return Result{}, fmt.Errorf("%w: %w", models.ErrRecognitionFailure, ErrOCRNotEnabled)
}
