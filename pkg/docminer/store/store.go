package store

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/mining"
)

// Store persists the per-document artifacts of a mining run, keyed by ref.
// Every put overwrites what was stored for the ref before.
type Store interface {
	Close() error

	PutLemmas(ctx context.Context, ref string, lemmas mining.LemmaSequence) error
	PutInvertedIndex(ctx context.Context, ref string, index mining.InvertedIndex) error
	PutExtractedData(ctx context.Context, ref string, data mining.ExtractedData) error

	// Getters return internalerr.ErrNotFound when nothing is stored for ref.
	GetLemmas(ctx context.Context, ref string) (mining.LemmaSequence, error)
	GetInvertedIndex(ctx context.Context, ref string) (mining.InvertedIndex, error)
	GetExtractedData(ctx context.Context, ref string) (mining.ExtractedData, error)

	// Delete removes every artifact of ref. Deleting an unknown ref is not an error.
	Delete(ctx context.Context, ref string) error

	// Refs lists the refs holding an artifact of the given kind, sorted.
	Refs(ctx context.Context, kind Kind) ([]string, error)
}

// Kind names one artifact family; the values double as directory names.
type Kind string

const (
	Blobs         Kind = "blobs"
	InvertedIndex Kind = "inverted_index"
	ExtractedData Kind = "extracted_data"
)

// Kinds lists every artifact kind.
var Kinds = []Kind{Blobs, InvertedIndex, ExtractedData}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case Blobs, InvertedIndex, ExtractedData:
		return true
	}
	return false
}

// RunRecord summarizes one corpus run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Skipped    int
	Report     []byte // JSON report
}

// RunRecorder is implemented by stores that keep a history of runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// CleanRef validates a ref for use as a relative, slash-separated storage key.
// Empty refs, absolute refs and refs escaping with ".." are rejected with
// internalerr.ErrInvalidInput.
func CleanRef(ref string) (string, error) {
	r := strings.ReplaceAll(ref, `\`, "/")
	if strings.TrimSpace(r) == "" {
		return "", fmt.Errorf("%w: empty ref", internalerr.ErrInvalidInput)
	}
	if strings.HasPrefix(r, "/") || (len(r) > 1 && r[1] == ':') {
		return "", fmt.Errorf("%w: absolute ref %q", internalerr.ErrInvalidInput, ref)
	}
	cleaned := path.Clean(r)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: ref %q escapes the store", internalerr.ErrInvalidInput, ref)
	}
	if strings.ContainsRune(cleaned, 0) {
		return "", fmt.Errorf("%w: ref %q contains NUL", internalerr.ErrInvalidInput, ref)
	}
	return cleaned, nil
}
