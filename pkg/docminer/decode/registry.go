package decode

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
)

// Func turns the raw bytes of one document into text.
type Func func(raw []byte) (string, error)

// Format tags of the built-in decoders.
const (
	TXT  = ".txt"
	YML  = ".yml"
	EML  = ".eml"
	MBOX = ".mbox"
	PDF  = ".pdf"
	DOC  = ".doc"
	DOCX = ".docx"
	XLS  = ".xls"
	XLSX = ".xlsx"
	CSV  = ".csv"
	XML  = ".xml"
	JSON = ".json"
	HTML = ".html"
)

// Registry maps format tags to decoders. It is immutable after construction.
type Registry struct {
	decoders map[string]Func
}

// NewRegistry copies decoders into a new registry. Tags are normalized with NormalizeTag.
func NewRegistry(decoders map[string]Func) *Registry {
	m := make(map[string]Func, len(decoders))
	for tag, fn := range decoders {
		if fn != nil {
			m[NormalizeTag(tag)] = fn
		}
	}
	return &Registry{decoders: m}
}

// Default returns a registry with every built-in format.
func Default() *Registry {
	return NewRegistry(map[string]Func{
		TXT:  Text,
		YML:  Text,
		EML:  Email,
		MBOX: Mailbox,
		PDF:  PDFText,
		DOC:  Word97,
		DOCX: WordXML,
		XLS:  Excel97,
		XLSX: ExcelXML,
		CSV:  CSVText,
		XML:  XMLText,
		JSON: JSONText,
		HTML: HTMLText,
	})
}

// NormalizeTag lowercases a tag and ensures a leading dot: "PDF" -> ".pdf".
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag != "" && !strings.HasPrefix(tag, ".") {
		tag = "." + tag
	}
	return tag
}

// Supports reports whether a decoder is registered for tag.
func (r *Registry) Supports(tag string) bool {
	_, ok := r.decoders[NormalizeTag(tag)]
	return ok
}

// Supported returns the registered tags, sorted.
func (r *Registry) Supported() []string {
	tags := make([]string, 0, len(r.decoders))
	for tag := range r.decoders {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Decode converts raw bytes of the given format to text.
//
// Unknown tags fail with internalerr.ErrUnsupportedFormat. Decoder failures,
// including panics inside third-party parsers, fail with internalerr.ErrDecode.
func (r *Registry) Decode(tag string, raw []byte) (text string, err error) {
	tag = NormalizeTag(tag)
	fn, ok := r.decoders[tag]
	if !ok {
		return "", fmt.Errorf("%w: %q", internalerr.ErrUnsupportedFormat, tag)
	}

	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%w: %s: panic: %v", internalerr.ErrDecode, tag, rec)
		}
	}()

	text, err = fn(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", internalerr.ErrDecode, tag, err)
	}
	return text, nil
}
