package nlp

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/stoplist"
)

// DefaultCacheSize bounds the number of loaded models kept in memory.
const DefaultCacheSize = 8

// EngineOptions configures an Engine.
type EngineOptions struct {
	Models    map[string]ModelSpec // language code -> spec
	CacheSize int
	Logger    *zap.Logger
}

// Engine loads per-language models on demand and caches them.
type Engine struct {
	specs  map[string]ModelSpec
	models *lru.Cache[string, *Model]
	mu     sync.Mutex
	logger *zap.Logger

	prose    *ProseRecognizer
	proseErr error
}

// NewEngine builds an engine over a fixed language table.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if len(opts.Models) == 0 {
		return nil, fmt.Errorf("%w: engine needs at least one language", internalerr.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	specs := make(map[string]ModelSpec, len(opts.Models))
	for code, spec := range opts.Models {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			return nil, fmt.Errorf("%w: empty language code", internalerr.ErrInvalidConfig)
		}
		if spec.NER != NERNone && spec.NER != NERProse {
			return nil, fmt.Errorf("%w: language %s: unknown ner %q", internalerr.ErrInvalidConfig, code, spec.NER)
		}
		specs[code] = spec
	}

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.NewWithEvict[string, *Model](size, func(lang string, _ *Model) {
		logger.Debug("model evicted", zap.String("lang", lang))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: model cache: %v", internalerr.ErrInvalidConfig, err)
	}

	return &Engine{specs: specs, models: cache, logger: logger}, nil
}

// Languages returns the configured language codes, sorted.
func (e *Engine) Languages() []string {
	out := make([]string, 0, len(e.specs))
	for code := range e.specs {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Load returns the model for a language, building it on first use.
// Unknown codes and models that fail to build return ErrModelUnavailable.
func (e *Engine) Load(lang string) (*Model, error) {
	lang = strings.ToLower(lang)
	if m, ok := e.models.Get(lang); ok {
		return m, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.models.Get(lang); ok {
		return m, nil
	}

	spec, ok := e.specs[lang]
	if !ok {
		return nil, fmt.Errorf("%w: no model for language %q", internalerr.ErrModelUnavailable, lang)
	}

	var recognizers []Recognizer
	if spec.NER == NERProse {
		p, err := e.loadProse()
		if err != nil {
			return nil, err
		}
		recognizers = append(recognizers, p)
	}
	if spec.Gazetteer.Len() > 0 {
		recognizers = append(recognizers, spec.Gazetteer)
	}
	recognizers = append(recognizers, spec.Recognizers...)

	var dict *Dictionary
	if spec.Dictionary != "" {
		d, err := LoadDictionary(spec.Dictionary)
		if err != nil {
			return nil, err
		}
		dict = d
	}

	m := NewModel(lang, spec.Stoplist, NewLemmatizer(dict, spec.Stemmer, spec.Lexicon), recognizers...)
	e.models.Add(lang, m)
	e.logger.Debug("model loaded",
		zap.String("lang", lang),
		zap.String("dictionary", spec.Dictionary),
		zap.String("stemmer", spec.Stemmer),
		zap.String("ner", spec.NER),
		zap.Int("recognizers", len(recognizers)))
	return m, nil
}

// loadProse is called with e.mu held. The prose model is shared by every language that asks for it.
func (e *Engine) loadProse() (*ProseRecognizer, error) {
	if e.prose == nil && e.proseErr == nil {
		e.prose, e.proseErr = NewProseRecognizer()
	}
	return e.prose, e.proseErr
}

// DefaultModels returns the built-in language table: the embedded stoplists,
// the shipped lemma dictionaries (snowball where none ships), and prose NER for English.
func DefaultModels() map[string]ModelSpec {
	models := make(map[string]ModelSpec)
	for _, code := range []string{"en", "es", "fr", "de"} {
		stops, _ := stoplist.Default(code)
		spec := ModelSpec{Stoplist: stops}
		if HasDictionary(code) {
			spec.Dictionary = code
		} else {
			spec.Stemmer = StemmerFor(code)
		}
		if code == "en" {
			spec.NER = NERProse
		}
		models[code] = spec
	}
	return models
}
