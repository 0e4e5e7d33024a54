package pdfdoc

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/font"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/text"
	"golang.org/x/text/unicode/norm"
)

// TextExtractor reads the embedded text of a page with tabula, decoding each
// run through the page font's ToUnicode map or encoding and assembling runs
// into lines by position. Whitespace inside runs is kept as stored.
//
// A page whose text cannot be decoded reliably yields "", which sends it to
// recognition. That covers streams tabula cannot parse and any run shown with
// a font missing from the page resources or a composite font without a
// ToUnicode map. Runs that decode to control characters count as well.
type TextExtractor struct{}

var _ document.TextExtractor = TextExtractor{}

func (TextExtractor) ExtractNative(ctx context.Context, doc document.Document, page int) (string, error) {
	d, err := asDocument(doc)
	if err != nil {
		return "", err
	}
	var out string
	err = d.withPage(page, func() error {
		r, err := d.tabula()
		if err != nil {
			return err
		}
		p, err := r.GetPage(page - 1)
		if err != nil {
			return fmt.Errorf("%w: tabula page %d: %v", models.ErrRenderFailure, page, err)
		}
		data, err := pageContent(p)
		if err != nil {
			return fmt.Errorf("%w: page %d content: %v", models.ErrRenderFailure, page, err)
		}
		if len(data) == 0 {
			return nil
		}
		out = pageText(p, data, r.ResolveReference)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// pageContent decodes and concatenates the page's content streams.
func pageContent(p *pages.Page) ([]byte, error) {
	contents, err := p.Contents()
	if err != nil {
		return nil, err
	}
	var data []byte
	for _, obj := range contents {
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		b, err := s.Decode()
		if err != nil {
			return nil, err
		}
		data = append(data, b...)
		data = append(data, '\n')
	}
	return data, nil
}

// pageText returns the page text, or "" when tabula cannot parse the stream or
// any run fails the trust check.
func pageText(p *pages.Page, data []byte, resolve func(core.IndirectRef) (core.Object, error)) string {
	ex := text.NewExtractor()
	// Fonts that fail to parse are left unregistered and caught below.
	_ = ex.RegisterFontsFromPage(p, resolve)
	fonts := decodable(ex.GetFonts())

	parseMu.Lock()
	ops, err := parseOperations(data)
	var frags []text.TextFragment
	if err == nil {
		frags, err = ex.Extract(ops)
	}
	parseMu.Unlock()
	if err != nil {
		return ""
	}

	for _, f := range frags {
		if !trusted(f, fonts) {
			return ""
		}
	}
	return cleanText(ex.GetText())
}

// decodable reports, per registered font name, whether its codes map to
// Unicode. Composite fonts use CIDs that only a ToUnicode map can translate.
func decodable(fonts map[string]*font.Font) map[string]bool {
	out := make(map[string]bool, len(fonts))
	for name, f := range fonts {
		out[name] = f.Subtype != "Type0" || f.ToUnicodeCMap != nil
	}
	return out
}

// trusted reports whether a fragment was decoded with a known font into
// printable text. The extractor substitutes Helvetica for fonts it has not
// seen, so a name absent from fonts is not trusted either.
func trusted(f text.TextFragment, fonts map[string]bool) bool {
	if !fonts[f.FontName] {
		return false
	}
	for _, r := range f.Text {
		if r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return false
		}
	}
	return true
}

// cleanText drops unprintable runes other than whitespace and normalizes to
// NFC. Whitespace is left as extracted so the whitespace policy sees it.
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return norm.NFC.String(s)
}
