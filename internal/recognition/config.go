package recognition

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// Engine names accepted by New.
const (
	EngineTesseract = "tesseract"
	EngineGemini    = "gemini"
)

// DefaultLanguages is the language table applied when Config.Languages is
// empty.
var DefaultLanguages = []string{"eng"}

// Config selects and configures an engine.
type Config struct {
	Engine    string
	Languages []string

	// Tesseract page segmentation mode; zero keeps the engine default.
	PageSegMode int

	// Gemini model, usually gcp.VertexClient.OCRModel.
	GeminiModel *genai.GenerativeModel
}

// New builds the configured engine wrapped in its language Adapter.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	var engine Engine
	switch cfg.Engine {
	case "", EngineTesseract:
		if !TesseractEnabled {
			return nil, fmt.Errorf("engine %q: %w", EngineTesseract, ErrOCRNotEnabled)
		}
		engine = NewTesseract(cfg.PageSegMode)
	case EngineGemini:
		if cfg.GeminiModel == nil {
			return nil, fmt.Errorf("engine %q requires a generative model", EngineGemini)
		}
		engine = NewGemini(cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown recognition engine %q", cfg.Engine)
	}
	return Supported(engine, langs...), nil
}

// ErrOCRNotEnabled is returned when Tesseract support was not compiled in.
// Rebuild with -tags ocr; this requires Tesseract and Leptonica headers.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")
