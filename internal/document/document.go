// Package document defines the collaborator contracts the extraction core
// depends on: a paginated document handle, a loader that opens one, and the
// two page-level capabilities (rasterization and native text extraction).
package document

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/documentocr/internal/models"
)

// Scale limits for rasterization. Scale multiplies the page's native point
// size, so 2.0 renders at 144 DPI.
const (
	MinScale     = 0.5
	MaxScale     = 4.0
	DefaultScale = 2.0
)

// Source locates a document: either a file path or an in-memory buffer.
// Name is used for logging only.
type Source struct {
	Name string
	Path string
	Data []byte
}

func (s Source) String() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Path != "":
		return s.Path
	}
	return fmt.Sprintf("<%d bytes>", len(s.Data))
}

// Document is an open, read-only paginated source. PageCount is fixed once
// opened. Implementations must tolerate concurrent page reads.
type Document interface {
	PageCount() int
	Close() error
}

// Loader opens a Document.
type Loader interface {
	Open(ctx context.Context, src Source) (Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src Source) (Document, error)

func (f LoaderFunc) Open(ctx context.Context, src Source) (Document, error) { return f(ctx, src) }

// Rasterizer renders one page into a new pixel buffer.
type Rasterizer interface {
	Render(ctx context.Context, doc Document, page int, scale float64) (*models.PageImage, error)
}

// TextExtractor returns the embedded text runs of a page joined by single
// spaces, or "" when the page has none.
type TextExtractor interface {
	ExtractNative(ctx context.Context, doc Document, page int) (string, error)
}

// CheckScale rejects scales outside [MinScale, MaxScale].
func CheckScale(scale float64) error {
	if scale < MinScale || scale > MaxScale {
		return fmt.Errorf("%w: scale %.2f outside [%.1f, %.1f]", models.ErrRenderFailure, scale, MinScale, MaxScale)
	}
	return nil
}

// ClampScale maps a requested scale into the supported range; zero or
// negative values select DefaultScale.
func ClampScale(scale float64) float64 {
	switch {
	case scale <= 0:
		return DefaultScale
	case scale < MinScale:
		return MinScale
	case scale > MaxScale:
		return MaxScale
	}
	return scale
}

// CheckPage validates a 1-based page index against doc.
func CheckPage(doc Document, page int) error {
	if n := doc.PageCount(); page < 1 || page > n {
		return fmt.Errorf("%w: page %d of %d", models.ErrPageNotFound, page, n)
	}
	return nil
}
