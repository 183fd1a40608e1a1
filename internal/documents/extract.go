// Package documents turns uploaded files into analysable text.
package documents

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"lexisense/internal/util"

	"github.com/ledongthuc/pdf"
)

type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

var textExtensions = map[string]bool{".txt": true, ".md": true, ".text": true}

// Detect picks the extraction path from the declared content type, falling
// back to the file extension and finally to the PDF magic bytes.
func Detect(filename, contentType string, data []byte) (Kind, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "application/pdf":
			return KindPDF, nil
		case strings.HasPrefix(mt, "text/"):
			return KindText, nil
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return KindPDF, nil
	case textExtensions[ext]:
		return KindText, nil
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return KindPDF, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", util.ErrUnsupportedDocument, filename, contentType)
}

// ExtractText returns the sanitised text of an upload. It fails with
// util.ErrNoExtractableText when nothing readable remains.
func ExtractText(filename, contentType string, data []byte) (string, error) {
	kind, err := Detect(filename, contentType, data)
	if err != nil {
		return "", err
	}
	var text string
	switch kind {
	case KindPDF:
		text, err = pdfText(data)
		if err != nil {
			return "", err
		}
	default:
		text = string(data)
	}
	text = util.SanitizeText(text)
	if strings.TrimSpace(text) == "" {
		return "", util.ErrNoExtractableText
	}
	return text, nil
}

// pdfText recovers from parser panics, which malformed uploads can trigger.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
