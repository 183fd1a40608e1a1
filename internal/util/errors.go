package util

import "errors"

var (
	ErrNoExtractableText   = errors.New("no extractable text found in document")
	ErrUnsupportedDocument = errors.New("unsupported document type")
)
