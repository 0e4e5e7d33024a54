package pdfdoc

import (
	"context"
	"errors"
	"testing"

	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/tsawler/tabula/font"
	"github.com/tsawler/tabula/text"
)

// identityFont returns the objects of a Type0 Identity-H font as objects 3
// (the font), 4 (its CIDFont), 5 (the descriptor) and, with a ToUnicode map,
// 6. Glyph IDs 002B 0048 004F 0052 map to H e l o.
func identityFont(toUnicode bool) []string {
	dict := "<< /Type /Font /Subtype /Type0 /BaseFont /AAAAAA+Sans /Encoding /Identity-H /DescendantFonts [4 0 R]"
	if toUnicode {
		dict += " /ToUnicode 6 0 R"
	}
	objs := []string{
		dict + " >>",
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /AAAAAA+Sans /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> /FontDescriptor 5 0 R /DW 600 /CIDToGIDMap /Identity >>",
		"<< /Type /FontDescriptor /FontName /AAAAAA+Sans /Flags 32 /FontBBox [0 -200 1000 900] /ItalicAngle 0 /Ascent 900 /Descent -200 /CapHeight 700 /StemV 80 >>",
	}
	if toUnicode {
		cmap := `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
4 beginbfchar
<002B> <0048>
<0048> <0065>
<004F> <006C>
<0052> <006F>
endbfchar
endcmap
CMapName currentdict /CMap defineresource pop
end
end`
		objs = append(objs, stream("", []byte(cmap)))
	}
	return objs
}

const identityHello = "BT /F1 12 Tf 72 720 Td <002B0048004F004F0052> Tj ET"

func TestExtractNativeToUnicode(t *testing.T) {
	doc := openPDF(t, writePDF(identityFont(true), testPage{content: identityHello}))
	got, err := TextExtractor{}.ExtractNative(context.Background(), doc, 1)
	if err != nil {
		t.Fatalf("ExtractNative() error = %v", err)
	}
	if got != "Hello" {
		t.Errorf("ExtractNative() = %q, want %q", got, "Hello")
	}
}

// Without a ToUnicode map the glyph IDs of a composite font say nothing about
// the characters, so the page must be left for recognition.
func TestExtractNativeUndecodableFont(t *testing.T) {
	tests := []struct {
		name  string
		extra []string
		page  testPage
	}{
		{
			name:  "identity font without ToUnicode",
			extra: identityFont(false),
			page:  testPage{content: identityHello},
		},
		{
			name:  "font missing from resources",
			extra: []string{helvetica},
			page:  testPage{content: "BT /F9 12 Tf 72 720 Td (+HOOR) Tj ET"},
		},
		{
			name:  "no font selected",
			extra: []string{helvetica},
			page:  testPage{content: "BT 72 720 Td (Hello) Tj ET"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := openPDF(t, writePDF(tt.extra, tt.page))
			got, err := TextExtractor{}.ExtractNative(context.Background(), doc, 1)
			if err != nil {
				t.Fatalf("ExtractNative() error = %v", err)
			}
			if got != "" {
				t.Errorf("ExtractNative() = %q, want empty", got)
			}
		})
	}
}

func TestExtractNativeText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", ""},
		{"no text", "q 100 0 0 100 0 0 cm 0 0 m 1 1 l S Q", ""},
		{"single run", "BT /F1 12 Tf 72 720 Td (Hello) Tj ET", "Hello"},
		{"lines in stored order", "BT /F1 12 Tf 72 720 Td (first) Tj 0 -14 Td (second) Tj ET", "first\nsecond"},
		{"paragraph gap", "BT /F1 12 Tf 72 720 Td (one) Tj 0 -40 Td (two) Tj ET", "one\n\ntwo"},
		{"whitespace kept", "BT /F1 12 Tf 72 720 Td (  a   b  ) Tj ET", "  a   b  "},
		{"whitespace only", "BT /F1 12 Tf 72 720 Td ( ) Tj ET", " "},
		{"utf16", "BT /F1 12 Tf 72 720 Td <FEFF00480069> Tj ET", "Hi"},
		{"inline image skipped", "BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xff EI BT /F1 12 Tf 72 720 Td (after) Tj ET", "after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := openPDF(t, buildPDF(tt.content))
			got, err := TextExtractor{}.ExtractNative(context.Background(), doc, 1)
			if err != nil {
				t.Fatalf("ExtractNative() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractNative() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{" keep\n spacing ", " keep\n spacing "},
		{"a\x00b\x07c", "abc"},
		{"e\u0301", "\u00e9"},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTrusted(t *testing.T) {
	fonts := map[string]bool{"/F1": true, "/F2": false}
	tests := []struct {
		name string
		frag text.TextFragment
		want bool
	}{
		{"known font", text.TextFragment{Text: "Hello", FontName: "/F1"}, true},
		{"whitespace", text.TextFragment{Text: " \t ", FontName: "/F1"}, true},
		{"undecodable font", text.TextFragment{Text: "Hello", FontName: "/F2"}, false},
		{"substituted font", text.TextFragment{Text: "+HOOR", FontName: "/F9"}, false},
		{"control characters", text.TextFragment{Text: "\x01\x02H", FontName: "/F1"}, false},
		{"replacement character", text.TextFragment{Text: "a\ufffd", FontName: "/F1"}, false},
	}
	for _, tt := range tests {
		if got := trusted(tt.frag, fonts); got != tt.want {
			t.Errorf("%s: trusted() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDecodable(t *testing.T) {
	withMap := font.NewFont("F1", "AAAAAA+Sans", "Type0")
	withMap.ToUnicodeCMap = font.NewCMap()
	got := decodable(map[string]*font.Font{
		"/F1": withMap,
		"/F2": font.NewFont("F2", "AAAAAA+Sans", "Type0"),
		"/F3": font.NewFont("F3", "Helvetica", "Type1"),
	})
	if !got["/F1"] || got["/F2"] || !got["/F3"] {
		t.Errorf("decodable() = %v", got)
	}
}

type otherDoc struct{}

func (otherDoc) PageCount() int { return 1 }
func (otherDoc) Close() error   { return nil }

func TestExtractNativeRejectsForeignDocument(t *testing.T) {
	_, err := TextExtractor{}.ExtractNative(context.Background(), otherDoc{}, 1)
	if !errors.Is(err, models.ErrRenderFailure) {
		t.Errorf("ExtractNative() error = %v, want ErrRenderFailure", err)
	}
}
