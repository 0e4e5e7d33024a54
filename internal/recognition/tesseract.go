//go:build ocr

package recognition

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/otiai10/gosseract/v2"
)

// TesseractEnabled reports whether Tesseract support was compiled in.
const TesseractEnabled = true

// Tesseract recognizes pages with a local Tesseract install via gosseract.
// A client is created per call since gosseract clients are not safe for
// concurrent use.
type Tesseract struct {
	pageSegMode int
}

// NewTesseract returns a Tesseract engine. A zero pageSegMode keeps
// Tesseract's automatic segmentation.
func NewTesseract(pageSegMode int) *Tesseract {
	return &Tesseract{pageSegMode: pageSegMode}
}

func (t *Tesseract) Name() string { return EngineTesseract }

func (t *Tesseract) Recognize(ctx context.Context, img *models.PageImage, language string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", models.ErrRecognitionFailure, err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(language, "+")...); err != nil {
		return Result{}, fmt.Errorf("%w: set language %q: %v", models.ErrUnsupportedLanguage, language, err)
	}
	if t.pageSegMode != 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(t.pageSegMode)); err != nil {
			return Result{}, fmt.Errorf("%w: set page segmentation: %v", models.ErrRecognitionFailure, err)
		}
	}
	if img.Scale > 0 {
		dpi := strconv.Itoa(int(72 * img.Scale))
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), dpi); err != nil {
			return Result{}, fmt.Errorf("%w: set dpi: %v", models.ErrRecognitionFailure, err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return Result{}, fmt.Errorf("%w: set image: %v", models.ErrRecognitionFailure, err)
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("%w: tesseract: %v", models.ErrRecognitionFailure, err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, fmt.Errorf("%w: word confidences: %v", models.ErrRecognitionFailure, err)
	}
	scores := make([]float64, 0, len(boxes))
	for _, b := range boxes {
		scores = append(scores, b.Confidence)
	}
	return Result{Text: text, Confidence: meanConfidence(scores)}, nil
}
