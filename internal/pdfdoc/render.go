package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// maxCanvasSide bounds either dimension of a rendered page in pixels.
const maxCanvasSide = 20000

// ImageRasterizer renders a page by painting its image XObjects onto a white
// canvas the size of the media box. It suits scanned pages where the page is
// one or more images. Pages that show visible text or paint paths fail with
// ErrRenderFailure rather than coming out blank; use MuPDFRasterizer for
// those.
type ImageRasterizer struct {
	// Scaler resamples images onto the canvas. Defaults to CatmullRom.
	Scaler xdraw.Scaler
}

var _ document.Rasterizer = ImageRasterizer{}

// placement is an image drawn by a Do operator, in PDF user space.
type placement struct {
	name                   string
	minX, minY, maxX, maxY float64
}

type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n, the order PDF uses when cm concatenates onto the CTM.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func (r ImageRasterizer) Render(ctx context.Context, doc document.Document, page int, scale float64) (*models.PageImage, error) {
	if err := document.CheckScale(scale); err != nil {
		return nil, err
	}
	d, err := asDocument(doc)
	if err != nil {
		return nil, err
	}
	var (
		width, height float64
		content       []byte
		encoded       map[string]encodedImage
	)
	err = d.withPage(page, func() error {
		var err error
		if width, height, err = d.pageSize(page); err != nil {
			return err
		}
		if content, err = d.content(page); err != nil {
			return err
		}
		encoded, err = d.images(page)
		return err
	})
	if err != nil {
		return nil, err
	}

	parseMu.Lock()
	ops, err := parseOperations(content)
	parseMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", models.ErrRenderFailure, page, err)
	}
	if op, ok := undrawable(ops, encoded); ok {
		return nil, fmt.Errorf("%w: page %d: %s content needs a full renderer", models.ErrRenderFailure, page, op)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoded := make(map[string]image.Image, len(encoded))
	for name, enc := range encoded {
		img, err := decodeImage(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", models.ErrRenderFailure, page, err)
		}
		decoded[name] = img
	}

	canvas, err := r.paint(width, height, scale, imagePlacements(ops), decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", models.ErrRenderFailure, page, err)
	}
	return &models.PageImage{Page: page, Image: canvas, Format: models.PixelGray, Scale: scale}, nil
}

// paint composes images onto a white canvas of the page size times scale.
// When no placement names a known image (images nested in form XObjects, for
// instance), the largest image is stretched over the whole page.
func (r ImageRasterizer) paint(width, height, scale float64, places []placement, imgs map[string]image.Image) (*image.Gray, error) {
	w := int(math.Ceil(width * scale))
	h := int(math.Ceil(height * scale))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty page box %.1fx%.1f", width, height)
	}
	if w > maxCanvasSide || h > maxCanvasSide {
		return nil, fmt.Errorf("canvas %dx%d exceeds %d pixels per side", w, h, maxCanvasSide)
	}
	scaler := r.Scaler
	if scaler == nil {
		scaler = xdraw.CatmullRom
	}

	canvas := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	painted := 0
	for _, p := range places {
		src, ok := imgs[p.name]
		if !ok {
			continue
		}
		// PDF user space has its origin at the bottom left.
		dst := image.Rect(
			int(math.Floor(p.minX*scale)),
			int(math.Floor((height-p.maxY)*scale)),
			int(math.Ceil(p.maxX*scale)),
			int(math.Ceil((height-p.minY)*scale)),
		)
		if dst.Intersect(canvas.Bounds()).Empty() {
			continue
		}
		scaler.Scale(canvas, dst, src, src.Bounds(), draw.Over, nil)
		painted++
	}

	if painted == 0 {
		if src := largest(imgs); src != nil {
			scaler.Scale(canvas, canvas.Bounds(), src, src.Bounds(), draw.Over, nil)
		}
	}
	return canvas, nil
}

// imagePlacements follows q/Q/cm to find where each Do paints its XObject.
// The unit square is mapped through the CTM and its bounding box kept, so
// rotated or skewed images are approximated by their axis-aligned extent.
func imagePlacements(ops []contentstream.Operation) []placement {
	ctm := identity
	var saved []matrix
	var out []placement
	for _, op := range ops {
		switch op.Operator {
		case "q":
			saved = append(saved, ctm)
		case "Q":
			if n := len(saved); n > 0 {
				ctm = saved[n-1]
				saved = saved[:n-1]
			}
		case "cm":
			if m, ok := matrixOperand(op.Operands); ok {
				ctm = m.mul(ctm)
			}
		case "Do":
			name, ok := xobjectName(op.Operands)
			if !ok {
				continue
			}
			p := placement{name: name, minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
			for _, corner := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				x, y := ctm.apply(corner[0], corner[1])
				p.minX, p.maxX = math.Min(p.minX, x), math.Max(p.maxX, x)
				p.minY, p.maxY = math.Min(p.minY, y), math.Max(p.maxY, y)
			}
			out = append(out, p)
		}
	}
	return out
}

func matrixOperand(args []core.Object) (matrix, bool) {
	if len(args) < 6 {
		return matrix{}, false
	}
	var m matrix
	for i, a := range args[len(args)-6:] {
		n, ok := number(a)
		if !ok {
			return matrix{}, false
		}
		m[i] = n
	}
	return m, true
}

func xobjectName(args []core.Object) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	n, ok := args[0].(core.Name)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(string(n), "/"), true
}

// Operators that put marks on the page which only a full renderer can draw.
var (
	textShowing  = map[string]bool{"Tj": true, "TJ": true, "'": true, "\"": true}
	pathPainting = map[string]bool{"S": true, "s": true, "f": true, "F": true, "f*": true, "B": true, "B*": true, "b": true, "b*": true, "sh": true}
)

// invisibleText is the Tr mode OCR tools use for text laid over scans.
const invisibleText = 3

// undrawable returns the first operator whose output the image rasterizer
// would drop: visible text, painted paths, or a Do on a page without any
// exported image. A Do naming a form XObject on a page that has images is
// left to the largest image fallback in paint.
func undrawable(ops []contentstream.Operation, imgs map[string]encodedImage) (string, bool) {
	mode := 0
	var saved []int
	for _, op := range ops {
		switch {
		case op.Operator == "q":
			saved = append(saved, mode)
		case op.Operator == "Q":
			if n := len(saved); n > 0 {
				mode = saved[n-1]
				saved = saved[:n-1]
			}
		case op.Operator == "Tr":
			if len(op.Operands) == 1 {
				if n, ok := number(op.Operands[0]); ok {
					mode = int(n)
				}
			}
		case textShowing[op.Operator]:
			if mode != invisibleText {
				return op.Operator, true
			}
		case pathPainting[op.Operator]:
			return op.Operator, true
		case op.Operator == "Do":
			if name, ok := xobjectName(op.Operands); ok && len(imgs) == 0 {
				return "Do " + name, true
			}
		}
	}
	return "", false
}

func decodeImage(enc encodedImage) (image.Image, error) {
	r := bytes.NewReader(enc.data)
	switch enc.fileType {
	case "tif", "tiff":
		img, err := tiff.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode tiff image %s: %w", enc.name, err)
		}
		return img, nil
	case "jpx":
		return nil, fmt.Errorf("image %s: JPEG 2000 is not supported", enc.name)
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s image %s: %w", enc.fileType, enc.name, err)
	}
	return img, nil
}

// largest picks the image with the most pixels, breaking ties by resource
// name so repeated renders choose the same image.
func largest(imgs map[string]image.Image) image.Image {
	var best image.Image
	bestName := ""
	bestArea := 0
	for name, img := range imgs {
		b := img.Bounds()
		area := b.Dx() * b.Dy()
		if area > bestArea || (area == bestArea && area > 0 && name < bestName) {
			best, bestName, bestArea = img, name, area
		}
	}
	return best
}
