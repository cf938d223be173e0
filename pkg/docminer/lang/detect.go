package lang

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
)

// Detector identifies the language of a text as an ISO 639-1 code.
//
// Blank text fails with internalerr.ErrLanguageUndetectable. Text whose language
// cannot be determined returns "" and no error; callers treat that like an
// unsupported code.
type Detector interface {
	Detect(text string) (string, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(text string) (string, error)

// Detect calls f.
func (f DetectorFunc) Detect(text string) (string, error) {
	return f(text)
}

// DefaultMinConfidence is the whatlanggo confidence below which a guess counts
// as undetermined. Short texts rarely clear it.
const DefaultMinConfidence = 0.5

// Whatlang detects languages with trigram profiles.
type Whatlang struct {
	opts whatlanggo.Options

	// MinConfidence is the lowest confidence accepted as a detection.
	MinConfidence float64
}

// NewWhatlang creates a detector. When allow is non-empty, detection is restricted
// to those ISO 639-1 codes.
func NewWhatlang(allow ...string) *Whatlang {
	d := &Whatlang{MinConfidence: DefaultMinConfidence}
	if len(allow) == 0 {
		return d
	}
	wanted := make(map[string]bool, len(allow))
	for _, code := range allow {
		wanted[strings.ToLower(code)] = true
	}
	whitelist := make(map[whatlanggo.Lang]bool)
	for l := range whatlanggo.Langs {
		if wanted[l.Iso6391()] {
			whitelist[l] = true
		}
	}
	if len(whitelist) > 0 {
		d.opts.Whitelist = whitelist
	}
	return d
}

// Detect returns the ISO 639-1 code of the dominant language of text, or ""
// when the best guess is below MinConfidence.
func (d *Whatlang) Detect(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", internalerr.ErrLanguageUndetectable
	}
	info := whatlanggo.DetectWithOptions(text, d.opts)
	// no script means no letters at all
	if info.Script == nil || info.Lang == -1 {
		return "", nil
	}
	if info.Confidence < d.MinConfidence {
		return "", nil
	}
	return info.Lang.Iso6391(), nil
}
