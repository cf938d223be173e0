package mining

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/docminer/pkg/docminer/extract"
	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/lang"
	"github.com/cognicore/docminer/pkg/docminer/nlp"
)

// DefaultLanguage is used when neither the caller nor the options name one.
const DefaultLanguage = "en"

// Options configures a Miner.
type Options struct {
	Detector   lang.Detector
	Engine     *nlp.Engine
	Extractors *extract.Set // defaults to extract.Default()

	// Supported is the language table used for fallback decisions.
	// Defaults to the engine's languages.
	Supported []string

	DefaultLanguage string
	Logger          *zap.Logger
}

// Miner turns plain text into extraction artifacts. It holds no per-document
// state and is safe for concurrent use.
type Miner struct {
	detector    lang.Detector
	engine      *nlp.Engine
	extractors  *extract.Set
	supported   map[string]struct{}
	defaultLang string
	logger      *zap.Logger
}

// New creates a miner.
func New(opts Options) (*Miner, error) {
	if opts.Detector == nil {
		return nil, fmt.Errorf("%w: miner needs a language detector", internalerr.ErrInvalidConfig)
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: miner needs a linguistic engine", internalerr.ErrInvalidConfig)
	}

	m := &Miner{
		detector:    opts.Detector,
		engine:      opts.Engine,
		extractors:  opts.Extractors,
		supported:   make(map[string]struct{}),
		defaultLang: strings.ToLower(opts.DefaultLanguage),
		logger:      opts.Logger,
	}
	if m.extractors == nil {
		m.extractors = extract.Default()
	}
	if m.defaultLang == "" {
		m.defaultLang = DefaultLanguage
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	supported := opts.Supported
	if len(supported) == 0 {
		supported = opts.Engine.Languages()
	}
	for _, code := range supported {
		m.supported[strings.ToLower(code)] = struct{}{}
	}
	return m, nil
}

// Supports reports whether a language code is in the supported table.
func (m *Miner) Supports(code string) bool {
	_, ok := m.supported[strings.ToLower(code)]
	return ok
}

// Mine runs every extraction pass over text.
//
// An empty defaultLanguage means the miner's default. A detected language outside
// the supported table is replaced by the default and Result.Fallback is set.
//
// Errors: blank text fails with internalerr.ErrLanguageUndetectable; a missing
// model with internalerr.ErrModelUnavailable; anything else with internalerr.ErrMining.
//
// The order of Result.Entities is not deterministic.
func (m *Miner) Mine(ctx context.Context, text, defaultLanguage string) (*Result, error) {
	if defaultLanguage == "" {
		defaultLanguage = m.defaultLang
	}
	if strings.TrimSpace(text) == "" {
		return nil, internalerr.ErrLanguageUndetectable
	}

	detected, err := m.detector.Detect(text)
	if err != nil {
		return nil, miningErr("detect language", err)
	}
	detected = strings.ToLower(detected)

	language, fallback := detected, false
	if !m.Supports(detected) {
		language, fallback = strings.ToLower(defaultLanguage), true
		m.logger.Debug("language fallback",
			zap.String("detected", detected),
			zap.String("language", language))
	}

	if err := ctx.Err(); err != nil {
		return nil, miningErr("before model load", err)
	}
	model, err := m.engine.Load(language)
	if err != nil {
		return nil, err
	}

	matches := m.extractors.Extract(text)

	ann, err := model.Annotate(ctx, text)
	if err != nil {
		return nil, miningErr("annotate", err)
	}
	entities := dedupEntities(ann.Entities)

	if err := ctx.Err(); err != nil {
		return nil, miningErr("before indexing", err)
	}
	lemmas, index := BuildIndex(ann.Tokens)

	return &Result{
		Language:         language,
		DetectedLanguage: detected,
		Fallback:         fallback,
		Extracted:        ExtractedData{Matches: matches, Entities: entities},
		Entities:         entities,
		Lemmas:           lemmas,
		Index:            index,
	}, nil
}

// miningErr classifies err as a mining failure unless it already is one.
func miningErr(step string, err error) error {
	if errors.Is(err, internalerr.ErrMining) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", internalerr.ErrMining, step, err)
}

// dedupEntities collapses duplicate (text, label) pairs. The result order follows
// map iteration and is therefore unspecified.
func dedupEntities(entities []nlp.Entity) []nlp.Entity {
	set := make(map[nlp.Entity]struct{}, len(entities))
	for _, e := range entities {
		set[e] = struct{}{}
	}
	out := make([]nlp.Entity, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}
