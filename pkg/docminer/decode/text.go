package decode

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text decodes plain text. Valid UTF-8 passes through; anything else is
// decoded with the best-guess charset (BOM sniffing, then windows-1252).
func Text(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	enc, _, _ := charset.DetermineEncoding(raw, "text/plain")
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("charset: %w", err)
	}
	// UTF-16 decoders keep the byte order mark
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}

// CSVText joins every record's fields with spaces, one record per line.
// Ragged rows are accepted.
func CSVText(raw []byte) (string, error) {
	text, err := Text(raw)
	if err != nil {
		return "", err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var b strings.Builder
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("csv: %w", err)
		}
		b.WriteString(strings.Join(record, " "))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// JSONText collects every string value of a JSON document in document order.
// Object keys and non-string scalars are dropped.
func JSONText(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var parts []string
	var stack []jsonFrame
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("json: %w", err)
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, jsonFrame{object: true, wantKey: true})
			case '[':
				stack = append(stack, jsonFrame{})
			default:
				stack = stack[:len(stack)-1]
				valueDone(stack)
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].wantKey {
				stack[n-1].wantKey = false
				continue
			}
			parts = append(parts, v)
			valueDone(stack)
		default:
			valueDone(stack)
		}
	}
	if len(stack) > 0 {
		return "", fmt.Errorf("json: %w", io.ErrUnexpectedEOF)
	}

	return strings.Join(parts, "\n"), nil
}

type jsonFrame struct {
	object  bool
	wantKey bool
}

// valueDone makes an enclosing object expect its next key.
func valueDone(stack []jsonFrame) {
	if n := len(stack); n > 0 && stack[n-1].object {
		stack[n-1].wantKey = true
	}
}
