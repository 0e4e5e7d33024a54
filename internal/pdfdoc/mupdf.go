package pdfdoc

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/models"
)

// MuPDFRasterizer renders full page content (vector, text and images) with
// MuPDF at 72*scale DPI.
type MuPDFRasterizer struct{}

// MuPDFTextExtractor reads page text through MuPDF, which applies font
// encodings and ToUnicode maps.
type MuPDFTextExtractor struct{}

var (
	_ document.Rasterizer    = MuPDFRasterizer{}
	_ document.TextExtractor = MuPDFTextExtractor{}
)

func (MuPDFRasterizer) Render(ctx context.Context, doc document.Document, page int, scale float64) (*models.PageImage, error) {
	if err := document.CheckScale(scale); err != nil {
		return nil, err
	}
	d, err := asDocument(doc)
	if err != nil {
		return nil, err
	}
	var out *models.PageImage
	err = d.withPage(page, func() error {
		f, err := d.mupdf()
		if err != nil {
			return err
		}
		img, err := f.ImageDPI(page-1, 72*scale)
		if err != nil {
			return fmt.Errorf("%w: mupdf page %d: %v", models.ErrRenderFailure, page, err)
		}
		out = &models.PageImage{Page: page, Image: img, Format: models.PixelRGBA, Scale: scale}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (MuPDFTextExtractor) ExtractNative(ctx context.Context, doc document.Document, page int) (string, error) {
	d, err := asDocument(doc)
	if err != nil {
		return "", err
	}
	var out string
	err = d.withPage(page, func() error {
		f, err := d.mupdf()
		if err != nil {
			return err
		}
		text, err := f.Text(page - 1)
		if err != nil {
			return fmt.Errorf("%w: mupdf text page %d: %v", models.ErrRenderFailure, page, err)
		}
		out = cleanText(text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
