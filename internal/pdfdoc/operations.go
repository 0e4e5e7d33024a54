package pdfdoc

import (
	"bytes"
	"sync"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
)

// parseMu serializes tabula content stream parsing, which keeps its operand
// stack in a package variable. It covers text extraction too, since the
// extractor parses through the same package.
var parseMu sync.Mutex

// parseOperations splits a decoded content stream into operations. The caller
// must hold parseMu.
func parseOperations(data []byte) ([]contentstream.Operation, error) {
	ops, err := contentstream.NewParser(stripInlineImages(data)).Parse()
	if err != nil {
		// A failed parse leaves operands behind; an operator consumes them.
		_, _ = contentstream.NewParser([]byte("n")).Parse()
		return nil, err
	}
	return ops, nil
}

// stripInlineImages removes BI ... ID <data> EI sequences. The tabula parser
// has no inline image support and would read the sample data as tokens.
func stripInlineImages(data []byte) []byte {
	var out []byte
	rest := data
	for {
		bi := operatorIndex(rest, "BI")
		if bi < 0 {
			break
		}
		id := operatorIndex(rest[bi+2:], "ID")
		if id < 0 {
			break
		}
		body := bi + 2 + id + 2
		ei := operatorIndex(rest[body:], "EI")
		if ei < 0 {
			break
		}
		if out == nil {
			out = make([]byte, 0, len(data))
		}
		out = append(out, rest[:bi]...)
		out = append(out, ' ')
		rest = rest[body+ei+2:]
	}
	if out == nil {
		return data
	}
	return append(out, rest...)
}

// operatorIndex finds op as a standalone token.
func operatorIndex(data []byte, op string) int {
	from := 0
	for {
		i := bytes.Index(data[from:], []byte(op))
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(op)
		if (i == 0 || isSpace(data[i-1])) && (end == len(data) || isSpace(data[end])) {
			return i
		}
		from = i + 1
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func number(obj core.Object) (float64, bool) {
	switch v := obj.(type) {
	case core.Int:
		return float64(v), true
	case core.Real:
		return float64(v), true
	}
	return 0, false
}
