package pdfdoc

import (
	"fmt"

	"github.com/Lllllllleong/documentocr/internal/document"
)

// Backend names accepted by NewBackend.
const (
	BackendImage = "image"
	BackendMuPDF = "mupdf"
)

// NewBackend returns the rasterizer and native text extractor for name. An
// empty name selects MuPDF. The image backend renders only image XObjects and
// reads text with tabula.
func NewBackend(name string) (document.Rasterizer, document.TextExtractor, error) {
	switch name {
	case "", BackendMuPDF:
		return MuPDFRasterizer{}, MuPDFTextExtractor{}, nil
	case BackendImage:
		return ImageRasterizer{}, TextExtractor{}, nil
	}
	return nil, nil, fmt.Errorf("unknown PDF backend %q", name)
}
