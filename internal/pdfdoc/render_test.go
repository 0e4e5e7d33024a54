package pdfdoc

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"strings"
	"testing"

	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/tsawler/tabula/contentstream"
)

func TestMatrixMul(t *testing.T) {
	translate := matrix{1, 0, 0, 1, 10, 20}
	scale := matrix{2, 0, 0, 3, 0, 0}
	// Scale first, then translate.
	m := scale.mul(translate)
	x, y := m.apply(1, 1)
	if x != 12 || y != 23 {
		t.Errorf("apply = (%v, %v), want (12, 23)", x, y)
	}
}

func parse(t *testing.T, content string) []contentstream.Operation {
	t.Helper()
	parseMu.Lock()
	defer parseMu.Unlock()
	ops, err := parseOperations([]byte(content))
	if err != nil {
		t.Fatalf("parseOperations() error = %v", err)
	}
	return ops
}

func TestImagePlacements(t *testing.T) {
	ops := parse(t, `
q 612 0 0 792 0 0 cm /Scan Do Q
q 1 0 0 1 100 100 cm q 50 0 0 25 0 0 cm /Logo Do Q Q
/Orphan Do`)
	got := imagePlacements(ops)
	if len(got) != 3 {
		t.Fatalf("placements = %+v", got)
	}
	want := []placement{
		{name: "Scan", minX: 0, minY: 0, maxX: 612, maxY: 792},
		{name: "Logo", minX: 100, minY: 100, maxX: 150, maxY: 125},
		{name: "Orphan", minX: 0, minY: 0, maxX: 1, maxY: 1},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("placement %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestImagePlacementsRotated(t *testing.T) {
	// 90 degree rotation of a 100x50 image placed at (200, 0).
	p := imagePlacements(parse(t, "q 0 100 -50 0 200 0 cm /Im0 Do Q"))[0]
	if p.minX != 150 || p.maxX != 200 || p.minY != 0 || p.maxY != 100 {
		t.Errorf("rotated placement = %+v", p)
	}
}

func TestParseOperationsRecoversAfterError(t *testing.T) {
	parseMu.Lock()
	_, err := parseOperations([]byte("1 2 3 ) Tj"))
	parseMu.Unlock()
	if err == nil {
		t.Fatal("expected parse error")
	}
	ops := parse(t, "q")
	if len(ops) != 1 || len(ops[0].Operands) != 0 {
		t.Errorf("operations after failed parse = %+v", ops)
	}
}

func TestStripInlineImages(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"q Q", "q Q"},
		{"q BI /W 1 /H 1 ID \x00EI\xff EI Q", "q   Q"},
		{"BI /W 1 ID x EI BI /W 2 ID yy EI /Im0 Do", "    /Im0 Do"},
		{"(BIRD) Tj", "(BIRD) Tj"},
		{"BI /W 1 ID never closed", "BI /W 1 ID never closed"},
	}
	for _, tt := range tests {
		if got := string(stripInlineImages([]byte(tt.in))); got != tt.want {
			t.Errorf("stripInlineImages(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUndrawable(t *testing.T) {
	imgs := map[string]encodedImage{"Im0": {name: "Im0"}}
	tests := []struct {
		name    string
		content string
		imgs    map[string]encodedImage
		want    string
	}{
		{"image only", "q 612 0 0 792 0 0 cm /Im0 Do Q", imgs, ""},
		{"blank", "", nil, ""},
		{"clip path", "0 0 612 792 re W n q 612 0 0 792 0 0 cm /Im0 Do Q", imgs, ""},
		{"visible text", "BT /F1 12 Tf (Hello) Tj ET", nil, "Tj"},
		{"text array", "BT /F1 12 Tf [(He) 20 (llo)] TJ ET", imgs, "TJ"},
		{"invisible text over scan", "/Im0 Do BT 3 Tr /F1 12 Tf (Hello) Tj ET", imgs, ""},
		{"render mode restored", "q 3 Tr Q BT /F1 12 Tf (x) Tj ET", imgs, "Tj"},
		{"stroked path", "0 0 m 100 100 l S", nil, "S"},
		{"filled path", "0 0 100 100 re f", imgs, "f"},
		{"form without images", "/Fm0 Do", nil, "Do Fm0"},
		{"form beside images", "/Fm0 Do", imgs, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := undrawable(parse(t, tt.content), tt.imgs)
			if ok != (tt.want != "") || got != tt.want {
				t.Errorf("undrawable() = %q, %v; want %q", got, ok, tt.want)
			}
		})
	}
}

func solid(w, h int, c color.Gray) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = c.Y
	}
	return img
}

func TestPaint(t *testing.T) {
	r := ImageRasterizer{}
	places := []placement{{name: "Im0", minX: 0, minY: 50, maxX: 50, maxY: 100}}
	imgs := map[string]image.Image{"Im0": solid(10, 10, color.Gray{Y: 0})}

	canvas, err := r.paint(100, 100, 2, places, imgs)
	if err != nil {
		t.Fatalf("paint() error = %v", err)
	}
	if b := canvas.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Fatalf("canvas = %v, want 200x200", b)
	}
	// The image covers the top-left quadrant in device space.
	if got := canvas.GrayAt(50, 50).Y; got != 0 {
		t.Errorf("top-left pixel = %d, want 0", got)
	}
	if got := canvas.GrayAt(150, 150).Y; got != 255 {
		t.Errorf("bottom-right pixel = %d, want 255", got)
	}
}

func TestPaintFallsBackToLargestImage(t *testing.T) {
	r := ImageRasterizer{}
	imgs := map[string]image.Image{
		"small": solid(2, 2, color.Gray{Y: 255}),
		"scan":  solid(20, 20, color.Gray{Y: 0}),
	}
	canvas, err := r.paint(10, 10, 1, nil, imgs)
	if err != nil {
		t.Fatalf("paint() error = %v", err)
	}
	if got := canvas.GrayAt(5, 5).Y; got != 0 {
		t.Errorf("pixel = %d, want 0 from the largest image", got)
	}
}

func TestPaintBlankPage(t *testing.T) {
	canvas, err := ImageRasterizer{}.paint(10, 20, 0.5, nil, nil)
	if err != nil {
		t.Fatalf("paint() error = %v", err)
	}
	if b := canvas.Bounds(); b.Dx() != 5 || b.Dy() != 10 {
		t.Errorf("canvas = %v, want 5x10", b)
	}
	if got := canvas.GrayAt(2, 2).Y; got != 255 {
		t.Errorf("pixel = %d, want white", got)
	}
}

func TestPaintRejectsOversizedPage(t *testing.T) {
	if _, err := (ImageRasterizer{}).paint(math.Pow(10, 5), 10, 4, nil, nil); err == nil {
		t.Error("expected error for oversized canvas")
	}
	if _, err := (ImageRasterizer{}).paint(0, 10, 1, nil, nil); err == nil {
		t.Error("expected error for empty page box")
	}
}

func TestRenderValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := (ImageRasterizer{}).Render(ctx, otherDoc{}, 1, 9); !errors.Is(err, models.ErrRenderFailure) {
		t.Errorf("Render(scale 9) error = %v, want ErrRenderFailure", err)
	}
	if _, err := (ImageRasterizer{}).Render(ctx, otherDoc{}, 1, 2); !errors.Is(err, models.ErrRenderFailure) {
		t.Errorf("Render(foreign doc) error = %v, want ErrRenderFailure", err)
	}
}

func TestDecodeImageUnsupported(t *testing.T) {
	if _, err := decodeImage(encodedImage{name: "Im0", fileType: "jpx"}); err == nil {
		t.Error("expected error for JPEG 2000")
	}
	if _, err := decodeImage(encodedImage{name: "Im0", fileType: "png", data: []byte("nope")}); err == nil {
		t.Error("expected error for corrupt png")
	}
}

func jpegData(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func flateData(t *testing.T, img *image.Gray) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(img.Pix); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// A black 20x10 image XObject drawn into the 200x100pt box at (50, 600) must
// land there on the canvas and nowhere else.
func TestRenderImageXObject(t *testing.T) {
	black := solid(20, 10, color.Gray{Y: 0})
	const dict = "/Type /XObject /Subtype /Image /Width 20 /Height 10 /ColorSpace /DeviceGray /BitsPerComponent 8"
	tests := []struct {
		name string
		obj  string
	}{
		{"dct", stream(dict+" /Filter /DCTDecode", jpegData(t, black))},
		{"flate", stream(dict+" /Filter /FlateDecode", flateData(t, black))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := openPDF(t, writePDF([]string{tt.obj}, testPage{
				content:   "q 200 0 0 100 50 600 cm /Im1 Do Q",
				resources: "<< /XObject << /Im1 3 0 R >> >>",
			}))
			img, err := ImageRasterizer{}.Render(context.Background(), doc, 1, 1)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			canvas, ok := img.Image.(*image.Gray)
			if !ok {
				t.Fatalf("image = %T, want *image.Gray", img.Image)
			}
			if b := canvas.Bounds(); b.Dx() != 612 || b.Dy() != 792 {
				t.Fatalf("canvas = %v, want 612x792", b)
			}
			// Device y runs down from the top: 792-700 to 792-600.
			if got := canvas.GrayAt(150, 142).Y; got > 32 {
				t.Errorf("centre of image box = %d, want dark", got)
			}
			for _, p := range []image.Point{{10, 10}, {400, 400}, {150, 300}} {
				if got := canvas.GrayAt(p.X, p.Y).Y; got != 255 {
					t.Errorf("pixel %v = %d, want white", p, got)
				}
			}

			text, err := TextExtractor{}.ExtractNative(context.Background(), doc, 1)
			if err != nil || text != "" {
				t.Errorf("ExtractNative() = %q, %v; want empty", text, err)
			}
		})
	}
}

func TestImageRasterizerRejectsTextPage(t *testing.T) {
	doc := openPDF(t, buildPDF("BT /F1 24 Tf 72 700 Td (Hello) Tj ET"))
	_, err := ImageRasterizer{}.Render(context.Background(), doc, 1, 1)
	if !errors.Is(err, models.ErrRenderFailure) {
		t.Errorf("Render() error = %v, want ErrRenderFailure", err)
	}
}

func darkPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				n++
			}
		}
	}
	return n
}

func TestMuPDFRendersText(t *testing.T) {
	doc := openPDF(t, buildPDF("BT /F1 48 Tf 72 700 Td (Hello) Tj ET"))
	ctx := context.Background()

	img, err := MuPDFRasterizer{}.Render(ctx, doc, 1, 1)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if img.Format != models.PixelRGBA || img.Page != 1 {
		t.Errorf("image = page %d format %v", img.Page, img.Format)
	}
	if n := darkPixels(img.Image); n == 0 {
		t.Error("rendered text page has no dark pixels")
	}

	first := doc.fz
	text, err := MuPDFTextExtractor{}.ExtractNative(ctx, doc, 1)
	if err != nil {
		t.Fatalf("ExtractNative() error = %v", err)
	}
	if !strings.Contains(text, "Hello") {
		t.Errorf("ExtractNative() = %q, want it to contain Hello", text)
	}
	if doc.fz == nil || doc.fz != first {
		t.Error("MuPDF handle was reopened between calls")
	}
	if _, err := (MuPDFRasterizer{}).Render(ctx, doc, 2, 1); !errors.Is(err, models.ErrPageNotFound) {
		t.Errorf("Render(2) error = %v, want ErrPageNotFound", err)
	}
}
