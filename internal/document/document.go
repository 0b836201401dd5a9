// Package document turns uploaded files into pipeline inputs: a PDF
// answer sheet becomes one image per page, a PDF question paper or
// solution key becomes its digital text layer, and raster images pass
// through untouched.
package document

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/gradepipe/gradepipe/internal/model"
)

// renderDPI doubles the 72 dpi PDF baseline; handwritten strokes need
// the extra resolution for usable OCR.
const renderDPI = 144

const jpegQuality = 90

// IsPDF reports whether data starts with the PDF magic bytes.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// SniffMIME detects the image type of data by magic bytes, defaulting to
// JPEG for anything unrecognized.
func SniffMIME(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// LoadPages converts an uploaded answer sheet into ordered page images.
// PDFs are rasterized one JPEG per page; any other input is treated as a
// single page image.
func LoadPages(data []byte) ([]model.Page, error) {
	if !IsPDF(data) {
		return []model.Page{{Index: 1, MIME: SniffMIME(data), Data: data}}, nil
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	var pages []model.Page
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, renderDPI)
		if err != nil {
			return nil, fmt.Errorf("render PDF page %d: %w", n+1, err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode PDF page %d: %w", n+1, err)
		}
		pages = append(pages, model.Page{Index: n + 1, MIME: "image/jpeg", Data: buf.Bytes()})
	}
	return pages, nil
}

// ExtractText returns the digital text of an uploaded question paper or
// solution key. PDFs yield their text layer joined by newlines; anything
// else is assumed to already be text.
func ExtractText(data []byte) (string, error) {
	if !IsPDF(data) {
		return string(data), nil
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("extract text from PDF page %d: %w", n+1, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
