package decode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText concatenates the plain text of every page.
// Pages that cannot be read are skipped; a document where no page is readable fails.
func PDFText(raw []byte) (out string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}

	pages := reader.NumPage()
	var b strings.Builder
	var failed int
	var lastErr error
	for i := 1; i <= pages; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	if pages > 0 && failed == pages {
		return "", fmt.Errorf("pdf: no readable page: %w", lastErr)
	}
	return b.String(), nil
}

func pageText(reader *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", i, r)
		}
	}()

	page := reader.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
