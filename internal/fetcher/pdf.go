package fetcher

import (
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"strings"
)

// maxPDFPages bounds how much of a PDF is examined before giving up.
const maxPDFPages = 10

var (
	pdfStreamRe  = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)
	pdfLiteralRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)
	pdfTextOpRe  = regexp.MustCompile(`BT(?s)(.*?)ET`)
)

// ExtractPDFText pulls visible text out of a PDF without a full parser:
// content streams are inflated where FlateDecode applies, and string
// literals inside BT/ET text blocks are collected. Best effort only — at
// most maxPages content streams are examined, mirroring the first-N-pages
// cutoff of the scan policy. Anything unparseable yields "".
func ExtractPDFText(data []byte, maxPages int) string {
	if maxPages <= 0 {
		maxPages = maxPDFPages
	}
	streams := pdfStreamRe.FindAllSubmatch(data, maxPages)
	var b strings.Builder
	for _, m := range streams {
		content := inflate(m[1])
		for _, block := range pdfTextOpRe.FindAllSubmatch(content, -1) {
			for _, lit := range pdfLiteralRe.FindAllSubmatch(block[1], -1) {
				b.Write(unescapePDF(lit[1]))
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// inflate attempts a zlib decode and falls back to the raw bytes, which
// covers uncompressed content streams.
func inflate(data []byte) []byte {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, 4*1024*1024))
	if err != nil && len(out) == 0 {
		return data
	}
	return out
}

func unescapePDF(lit []byte) []byte {
	out := make([]byte, 0, len(lit))
	for i := 0; i < len(lit); i++ {
		if lit[i] == '\\' && i+1 < len(lit) {
			i++
			switch lit[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			default:
				out = append(out, lit[i])
			}
			continue
		}
		out = append(out, lit[i])
	}
	return out
}
