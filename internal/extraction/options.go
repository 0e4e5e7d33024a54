package extraction

import (
	"log/slog"
	"runtime"
	"strings"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/gcp"
	"github.com/Lllllllleong/documentocr/internal/models"
)

// DefaultLanguage is the recognition language used when Options.Language is
// empty.
const DefaultLanguage = "eng"

// WhitespacePolicy decides what happens to a page whose native text is
// non-empty but contains only whitespace.
type WhitespacePolicy string

const (
	// WhitespaceRecognize treats whitespace-only native text as absent and
	// sends the page to the recognition engine.
	WhitespaceRecognize WhitespacePolicy = "recognize"
	// WhitespaceKeep returns whitespace-only text as the page's native text.
	WhitespaceKeep WhitespacePolicy = "keep"
)

// Options tune a single extraction call. The zero value is usable.
type Options struct {
	Language    string
	Scale       float64
	ForceOCR    bool
	Concurrency int

	Whitespace WhitespacePolicy

	// OnProgress is invoked once per completed page. Calls are serialized;
	// while it runs, in-flight pages keep working but no further events are
	// delivered.
	OnProgress func(models.ProgressEvent)

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	o.Language = strings.TrimSpace(o.Language)
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	o.Scale = document.ClampScale(o.Scale)
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	if o.Whitespace != WhitespaceKeep {
		o.Whitespace = WhitespaceRecognize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// OptionsFromEnv reads process-wide extraction defaults. Callback and logger
// are left unset.
func OptionsFromEnv() Options {
	return Options{
		Language:    gcp.GetEnv("OCR_LANGUAGE", DefaultLanguage),
		Scale:       gcp.GetEnvFloat("OCR_SCALE", document.DefaultScale),
		ForceOCR:    gcp.GetEnvBool("OCR_FORCE", false),
		Concurrency: gcp.GetEnvInt("OCR_CONCURRENCY", 0),
		Whitespace:  WhitespacePolicy(strings.ToLower(gcp.GetEnv("OCR_WHITESPACE_POLICY", string(WhitespaceRecognize)))),
	}
}

// ProgressChannel adapts ch to an OnProgress callback. A full channel blocks
// delivery the same way a slow callback does.
func ProgressChannel(ch chan<- models.ProgressEvent) func(models.ProgressEvent) {
	return func(ev models.ProgressEvent) { ch <- ev }
}
