package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/docminer/pkg/docminer"
	"github.com/cognicore/docminer/pkg/docminer/decode"
	"github.com/cognicore/docminer/pkg/docminer/extract"
	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/lang"
	"github.com/cognicore/docminer/pkg/docminer/lexicon"
	"github.com/cognicore/docminer/pkg/docminer/mining"
	"github.com/cognicore/docminer/pkg/docminer/nlp"
	"github.com/cognicore/docminer/pkg/docminer/stoplist"
	"github.com/cognicore/docminer/pkg/docminer/store"
	"github.com/cognicore/docminer/pkg/docminer/store/fsstore"
	"github.com/cognicore/docminer/pkg/docminer/store/memstore"
	"github.com/cognicore/docminer/pkg/docminer/store/sqlite"
)

// "none" disables the embedded stoplist, the dictionary or the stemmer of a language.
const none = "none"

// Loader loads the auxiliary files a Config names and constructs components
type Loader struct {
	Config Config
	Logger *zap.Logger

	// BaseDir resolves relative stoplist, lexicon and gazetteer paths.
	BaseDir string
}

// Components holds the constructed mining components
type Components struct {
	Decoder    *decode.Registry
	Detector   lang.Detector
	Engine     *nlp.Engine
	Extractors *extract.Set
	Miner      *mining.Miner
	Supported  []string
}

// Load reads every auxiliary file and returns initialized components
func (l *Loader) Load() (*Components, error) {
	logger := l.logger()
	comp := &Components{
		Decoder:  decode.Default(),
		Detector: lang.NewWhatlang(),
	}

	// Load gazetteer
	var gaz *nlp.Gazetteer
	if l.Config.Gazetteer != "" {
		g, err := LoadGazetteer(l.resolve(l.Config.Gazetteer))
		if err != nil {
			return nil, fmt.Errorf("load gazetteer: %w", err)
		}
		gaz = nlp.NewGazetteer(g.Entities)
		logger.Debug("gazetteer loaded", zap.Int("entries", gaz.Len()))
	}

	// Build language table
	models := nlp.DefaultModels()
	if len(l.Config.Languages) > 0 {
		models = make(map[string]nlp.ModelSpec, len(l.Config.Languages))
		for code, lc := range l.Config.Languages {
			spec, err := l.modelSpec(code, lc)
			if err != nil {
				return nil, fmt.Errorf("language %s: %w", code, err)
			}
			models[strings.ToLower(code)] = spec
		}
	}
	if gaz != nil {
		for code, spec := range models {
			spec.Gazetteer = gaz
			models[code] = spec
		}
	}

	engine, err := nlp.NewEngine(nlp.EngineOptions{
		Models:    models,
		CacheSize: l.Config.ModelCacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	comp.Engine = engine
	comp.Supported = engine.Languages()

	// Build extractors
	comp.Extractors = extract.Default()
	if len(l.Config.Extractors) > 0 {
		patterns := make(map[string]string, len(l.Config.Extractors))
		for _, e := range l.Config.Extractors {
			patterns[strings.TrimSpace(e.Name)] = e.Pattern
		}
		if comp.Extractors, err = comp.Extractors.With(patterns); err != nil {
			return nil, err
		}
	}

	comp.Miner, err = mining.New(mining.Options{
		Detector:        comp.Detector,
		Engine:          engine,
		Extractors:      comp.Extractors,
		Supported:       comp.Supported,
		DefaultLanguage: l.Config.DefaultLanguage,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("components loaded",
		zap.Strings("languages", comp.Supported),
		zap.Strings("extractors", comp.Extractors.Names()),
		zap.Strings("formats", comp.Decoder.Supported()))
	return comp, nil
}

func (l *Loader) modelSpec(code string, lc LanguageConfig) (nlp.ModelSpec, error) {
	spec := nlp.ModelSpec{NER: strings.ToLower(strings.TrimSpace(lc.NER))}

	switch lc.Dictionary {
	case "":
		if nlp.HasDictionary(code) {
			spec.Dictionary = strings.ToLower(code)
		}
	case none:
	default:
		if !nlp.HasDictionary(lc.Dictionary) {
			return spec, fmt.Errorf("%w: unknown lemma dictionary %q", internalerr.ErrInvalidConfig, lc.Dictionary)
		}
		spec.Dictionary = strings.ToLower(lc.Dictionary)
	}

	switch lc.Stemmer {
	case "":
		if spec.Dictionary == "" {
			spec.Stemmer = nlp.StemmerFor(code)
		}
	case none:
	default:
		if !nlp.ValidStemmer(lc.Stemmer) {
			return spec, fmt.Errorf("%w: unknown stemmer %q", internalerr.ErrInvalidConfig, lc.Stemmer)
		}
		spec.Stemmer = lc.Stemmer
	}

	switch lc.Stoplist {
	case "":
		spec.Stoplist, _ = stoplist.Default(code)
	case none:
	default:
		stops, err := stoplist.Load(l.resolve(lc.Stoplist))
		if err != nil {
			return spec, fmt.Errorf("load stoplist: %w", err)
		}
		spec.Stoplist = stops
	}

	if len(lc.StopwordsAdd) > 0 && spec.Stoplist == nil {
		spec.Stoplist = stoplist.NewManager(nil)
	}
	for _, w := range lc.StopwordsAdd {
		spec.Stoplist.Add(w)
	}
	if spec.Stoplist != nil {
		for _, w := range lc.StopwordsRemove {
			spec.Stoplist.Remove(w)
		}
	}

	if lc.Lexicon != "" {
		lex, err := lexicon.LoadFromYAML(l.resolve(lc.Lexicon))
		if err != nil {
			return spec, fmt.Errorf("load lexicon: %w", err)
		}
		spec.Lexicon = lex
	}
	return spec, nil
}

// OpenStore opens the configured persistence backend.
func (l *Loader) OpenStore(ctx context.Context) (store.Store, error) {
	sc := l.Config.Store
	switch sc.Backend {
	case BackendFS, "":
		st, err := fsstore.Open(sc.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case BackendSQLite:
		if dir := filepath.Dir(sc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
			}
		}
		return sqlite.OpenSQLite(ctx, sc.Path)
	case BackendMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", internalerr.ErrInvalidConfig, sc.Backend)
	}
}

// CorpusOptions returns the CorpusMiner options for the loaded components.
func (l *Loader) CorpusOptions(comp *Components, st store.Store) docminer.Options {
	return docminer.Options{
		Decoder:           comp.Decoder,
		Miner:             comp.Miner,
		Store:             st,
		Logger:            l.logger(),
		Workers:           l.Config.Workers,
		PersistLemmaBlobs: l.Config.PersistLemmaBlobs,
		DefaultLanguage:   l.Config.DefaultLanguage,
		DocumentTimeout:   l.Config.DocumentTimeout,
		ProgressEvery:     l.Config.ProgressEvery,
	}
}

func (l *Loader) resolve(path string) string {
	if l.BaseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.BaseDir, path)
}

func (l *Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}
