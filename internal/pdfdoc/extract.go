// Package pdfdoc reads text out of uploaded PDFs and renders finished
// solutions back into new ones.
package pdfdoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract returns the plain text of the document and its page count.
// The underlying parser panics on some malformed inputs, so the whole
// read is fenced with a recover.
func (e *Extractor) Extract(data []byte) (text string, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extract pdf: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = r.NumPage()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("read pdf text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", 0, fmt.Errorf("read pdf text: %w", err)
	}

	return b.String(), pages, nil
}
