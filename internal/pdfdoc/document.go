// Package pdfdoc opens PDF files and implements the page-level capabilities
// the extraction core needs. pdfcpu validates the file and exports image
// XObjects, tabula decodes page text through the page fonts, and MuPDF renders
// full page content.
package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/tsawler/tabula/reader"
)

// Document is an open PDF. None of the pdfcpu context, the tabula reader or
// the MuPDF handle are safe for concurrent use, so every page access runs
// under mu through withPage.
type Document struct {
	mu     sync.Mutex
	ctx    *model.Context
	data   []byte
	dims   []types.Dim
	name   string
	path   string
	closed bool

	// Opened on first use.
	tab     *reader.Reader
	tmpPath string
	fz      *fitz.Document
}

// encodedImage is an image XObject as pdfcpu exports it.
type encodedImage struct {
	name     string
	fileType string
	width    int
	height   int
	data     []byte
}

// Open reads and validates the PDF named by src.
func Open(ctx context.Context, src document.Source) (*Document, error) {
	data := src.Data
	if data == nil {
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrOpenDocument, err)
		}
		data = b
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Image export reads the page image table built by optimization.
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.EXTRACTIMAGES

	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrOpenDocument, src, err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: page count %s: %v", models.ErrOpenDocument, src, err)
	}
	if pctx.PageCount == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDocument, src)
	}
	dims, err := pctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: page boxes %s: %v", models.ErrOpenDocument, src, err)
	}

	d := &Document{ctx: pctx, data: data, dims: dims, name: src.String()}
	if src.Data == nil {
		d.path = src.Path
	}
	return d, nil
}

// Loader opens documents with Open.
func Loader() document.Loader {
	return document.LoaderFunc(func(ctx context.Context, src document.Source) (document.Document, error) {
		return Open(ctx, src)
	})
}

func (d *Document) PageCount() int { return d.ctx.PageCount }

func (d *Document) Name() string { return d.name }

// Bytes returns the raw file contents.
func (d *Document) Bytes() []byte { return d.data }

// Close invalidates the handle and releases the readers opened for it. Later
// page reads fail with ErrDocumentInvalid.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var first error
	if d.fz != nil {
		first = d.fz.Close()
		d.fz = nil
	}
	if d.tab != nil {
		if err := d.tab.Close(); err != nil && first == nil {
			first = err
		}
		d.tab = nil
	}
	if d.tmpPath != "" {
		if err := os.Remove(d.tmpPath); err != nil && first == nil {
			first = err
		}
		d.tmpPath = ""
	}
	return first
}

// withPage runs fn holding mu, after checking that the handle is open and
// page exists.
func (d *Document) withPage(page int, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("%w: %s is closed", models.ErrDocumentInvalid, d.name)
	}
	if err := document.CheckPage(d, page); err != nil {
		return err
	}
	return fn()
}

// PageSize returns the page's width and height in points.
func (d *Document) PageSize(page int) (float64, float64, error) {
	var w, h float64
	err := d.withPage(page, func() error {
		var err error
		w, h, err = d.pageSize(page)
		return err
	})
	return w, h, err
}

func (d *Document) pageSize(page int) (float64, float64, error) {
	if page > len(d.dims) {
		return 0, 0, fmt.Errorf("%w: no media box for page %d", models.ErrRenderFailure, page)
	}
	dim := d.dims[page-1]
	return dim.Width, dim.Height, nil
}

// content returns the decoded, concatenated content streams of page.
// Callers hold mu.
func (d *Document) content(page int) ([]byte, error) {
	r, err := pdfcpu.ExtractPageContent(d.ctx, page)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d content: %v", models.ErrRenderFailure, page, err)
	}
	if r == nil {
		return nil, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d content: %v", models.ErrRenderFailure, page, err)
	}
	return b, nil
}

// images returns the page's image XObjects keyed by resource name.
// Callers hold mu.
func (d *Document) images(page int) (map[string]encodedImage, error) {
	extracted, err := pdfcpu.ExtractPageImages(d.ctx, page, false)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d images: %v", models.ErrRenderFailure, page, err)
	}
	out := make(map[string]encodedImage, len(extracted))
	for _, img := range extracted {
		if img.Reader == nil {
			continue
		}
		b, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d image %s: %v", models.ErrRenderFailure, page, img.Name, err)
		}
		out[img.Name] = encodedImage{
			name:     img.Name,
			fileType: img.FileType,
			width:    img.Width,
			height:   img.Height,
			data:     b,
		}
	}
	return out, nil
}

// tabula returns the document's tabula reader, opening it on first use. The
// reader needs a file, so in-memory sources are spilled to a temporary file
// that Close removes. Callers hold mu.
func (d *Document) tabula() (*reader.Reader, error) {
	if d.tab != nil {
		return d.tab, nil
	}
	path := d.path
	if path == "" {
		f, err := os.CreateTemp("", "documentocr-*.pdf")
		if err != nil {
			return nil, fmt.Errorf("%w: spill %s: %v", models.ErrRenderFailure, d.name, err)
		}
		_, werr := f.Write(d.data)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			os.Remove(f.Name())
			return nil, fmt.Errorf("%w: spill %s: write failed", models.ErrRenderFailure, d.name)
		}
		d.tmpPath = f.Name()
		path = d.tmpPath
	}
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: tabula open %s: %v", models.ErrRenderFailure, d.name, err)
	}
	d.tab = r
	return r, nil
}

// mupdf returns the document's MuPDF handle, opening it on first use.
// Callers hold mu.
func (d *Document) mupdf() (*fitz.Document, error) {
	if d.fz != nil {
		return d.fz, nil
	}
	f, err := fitz.NewFromMemory(d.data)
	if err != nil {
		return nil, fmt.Errorf("%w: mupdf open %s: %v", models.ErrRenderFailure, d.name, err)
	}
	d.fz = f
	return f, nil
}

// asDocument narrows a document.Document to a pdfdoc handle.
func asDocument(doc document.Document) (*Document, error) {
	d, ok := doc.(*Document)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a PDF document", models.ErrRenderFailure, doc)
	}
	return d, nil
}
