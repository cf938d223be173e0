package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Document-level failures. CorpusMiner skips the item for any of these.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecode            = errors.New("decode failed")
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrMining            = errors.New("mining failed")
	ErrPersistence       = errors.New("persistence failed")

	// ErrLanguageUndetectable is a mining failure: blank text has no language.
	ErrLanguageUndetectable = fmt.Errorf("%w: language undetectable", ErrMining)
)
