package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"

	"github.com/cognicore/docminer/pkg/docminer"
	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/mining"
	"github.com/cognicore/docminer/pkg/docminer/nlp"
	"github.com/cognicore/docminer/pkg/docminer/store/fsstore"
	"github.com/cognicore/docminer/pkg/docminer/store/memstore"
)

func TestLoaderDefaults(t *testing.T) {
	l := &Loader{Config: Default()}
	comp, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if want := []string{"de", "en", "es", "fr"}; !reflect.DeepEqual(comp.Supported, want) {
		t.Errorf("Supported = %v, want %v", comp.Supported, want)
	}
	if !comp.Decoder.Supports(".pdf") {
		t.Error("decoder should support .pdf")
	}
	if !slices.Contains(comp.Extractors.Names(), "email") {
		t.Errorf("extractors = %v", comp.Extractors.Names())
	}
	if comp.Miner == nil || comp.Detector == nil {
		t.Error("miner and detector should be built")
	}
}

func TestLoaderCustomLanguages(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "stops.yaml", "terms: [the, a, see]\n")
	writeYAML(t, dir, "lexicon.yaml", "lemmas:\n  - canonical: mouse\n    variants: [mice]\n")
	writeYAML(t, dir, "entities.yaml", "entities:\n  ORG:\n    Acme Corp: [acme]\n")

	cfg := Default()
	cfg.Languages = map[string]LanguageConfig{
		"EN": {Stoplist: "stops.yaml", Lexicon: "lexicon.yaml"},
	}
	cfg.Gazetteer = "entities.yaml"
	cfg.Extractors = []ExtractorConfig{{Name: "ticket", Pattern: `TICKET-[0-9]+`}}

	comp, err := (&Loader{Config: cfg, BaseDir: dir}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(comp.Supported, []string{"en"}) {
		t.Errorf("Supported = %v", comp.Supported)
	}
	if !slices.Contains(comp.Extractors.Names(), "ticket") {
		t.Errorf("extractors = %v", comp.Extractors.Names())
	}

	res, err := comp.Miner.Mine(context.Background(), "I see the mice at Acme about TICKET-42", "en")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if got := res.Extracted.Matches["ticket"]; !reflect.DeepEqual(got, []string{"TICKET-42"}) {
		t.Errorf("ticket matches = %v", got)
	}
	if _, ok := res.Index["mouse"]; !ok {
		t.Errorf("lexicon lemma missing from index %v", res.Index)
	}
	if _, ok := res.Index["see"]; ok {
		t.Error("custom stopword should be filtered")
	}
	if !slices.Contains(res.Entities, nlp.Entity{Text: "Acme", Label: "ORG"}) {
		t.Errorf("gazetteer entity missing: %v", res.Entities)
	}
}

func TestLoaderStopwordAdjustments(t *testing.T) {
	cfg := Default()
	cfg.Languages = map[string]LanguageConfig{
		"en": {StopwordsAdd: []string{"Invoice"}, StopwordsRemove: []string{"not"}},
	}

	l := &Loader{Config: cfg}
	en, err := l.modelSpec("en", cfg.Languages["en"])
	if err != nil {
		t.Fatal(err)
	}
	if !en.Stoplist.IsStop("invoice") || en.Stoplist.IsStop("not") || !en.Stoplist.IsStop("the") {
		t.Error("embedded stoplist should be adjusted in place")
	}

	fr, err := l.modelSpec("fr", LanguageConfig{Stoplist: "none", StopwordsAdd: []string{"facture"}})
	if err != nil {
		t.Fatal(err)
	}
	if fr.Stoplist.Len() != 1 || !fr.Stoplist.IsStop("facture") {
		t.Errorf("added stopwords without a stoplist should form a new one, got %d words", fr.Stoplist.Len())
	}

	comp, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	res, err := comp.Miner.Mine(context.Background(), "Invoice not paid", "en")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if _, ok := res.Index["invoice"]; ok {
		t.Error("added stopword should be filtered")
	}
	if _, ok := res.Index["not"]; !ok {
		t.Errorf("removed stopword should be indexed, index = %v", res.Index)
	}
}

func TestLoaderRejectsBadLanguage(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]LanguageConfig{
		"stemmer":    {Stemmer: "klingon"},
		"dictionary": {Dictionary: "klingon"},
		"ner":        {NER: "spacy"},
		"stoplist":   {Stoplist: "missing.yaml"},
		"lexicon":    {Lexicon: "missing.yaml"},
	}
	for name, lc := range cases {
		cfg := Default()
		cfg.Languages = map[string]LanguageConfig{"en": lc}
		if _, err := (&Loader{Config: cfg, BaseDir: dir}).Load(); err == nil {
			t.Errorf("%s: Load should fail", name)
		}
	}

	cfg := Default()
	cfg.Languages = map[string]LanguageConfig{"en": {Stemmer: "klingon"}}
	if _, err := (&Loader{Config: cfg}).Load(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoaderLemmatizerChoice(t *testing.T) {
	l := &Loader{Config: Default()}
	tests := []struct {
		code          string
		lc            LanguageConfig
		dict, stemmer string
	}{
		{"EN", LanguageConfig{}, "en", ""},
		{"ru", LanguageConfig{}, "", "russian"},
		{"en", LanguageConfig{Dictionary: "none"}, "", "english"},
		{"en", LanguageConfig{Dictionary: "none", Stemmer: "none"}, "", ""},
	}
	for _, tt := range tests {
		spec, err := l.modelSpec(tt.code, tt.lc)
		if err != nil {
			t.Fatalf("modelSpec(%s, %+v): %v", tt.code, tt.lc, err)
		}
		if spec.Dictionary != tt.dict || spec.Stemmer != tt.stemmer {
			t.Errorf("modelSpec(%s, %+v) = dictionary %q stemmer %q, want %q %q",
				tt.code, tt.lc, spec.Dictionary, spec.Stemmer, tt.dict, tt.stemmer)
		}
	}
}

func TestLoaderOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := Default()
	cfg.Store = StoreConfig{Backend: BackendFS, Path: filepath.Join(dir, "out")}
	st, err := (&Loader{Config: cfg}).OpenStore(ctx)
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	if _, ok := st.(*fsstore.Store); !ok {
		t.Errorf("fs backend = %T", st)
	}
	st.Close()

	cfg.Store = StoreConfig{Backend: BackendSQLite, Path: filepath.Join(dir, "db", "docminer.db")}
	st, err = (&Loader{Config: cfg}).OpenStore(ctx)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "db", "docminer.db")); err != nil {
		t.Errorf("database file: %v", err)
	}

	cfg.Store = StoreConfig{Backend: BackendMemory}
	st, err = (&Loader{Config: cfg}).OpenStore(ctx)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := st.(*memstore.Store); !ok {
		t.Errorf("memory backend = %T", st)
	}

	cfg.Store = StoreConfig{Backend: "s3"}
	if _, err := (&Loader{Config: cfg}).OpenStore(ctx); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("unknown backend: err = %v", err)
	}
}

func TestLoaderEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := Default()
	cfg.Store = StoreConfig{Backend: BackendMemory}
	cfg.Languages = map[string]LanguageConfig{"en": {}}
	cfg.PersistLemmaBlobs = true

	l := &Loader{Config: cfg}
	comp, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st, err := l.OpenStore(ctx)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	cm, err := docminer.New(l.CorpusOptions(comp, st))
	if err != nil {
		t.Fatalf("docminer.New: %v", err)
	}
	report, err := cm.Run(ctx, docminer.NewSliceSource(docminer.Item{
		Ref:    "doc1",
		Format: ".txt",
		Raw:    []byte("Please contact alice@example.com about the quarterly reports."),
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed = %d, want 1", report.Processed)
	}

	data, err := st.GetExtractedData(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got := data.Matches["email"]; !reflect.DeepEqual(got, []string{"alice@example.com"}) {
		t.Errorf("email = %v", got)
	}

	lemmas, err := st.GetLemmas(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(lemmas, "alice@example.com") || !slices.Contains(lemmas, "report") {
		t.Errorf("lemmas = %v", lemmas)
	}
}

func TestLoaderShortEnglishFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Languages = map[string]LanguageConfig{"en": {}, "fr": {}}

	comp, err := (&Loader{Config: cfg}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	res, err := comp.Miner.Mine(context.Background(), "Contact alice@example.com now.", "")
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if res.Language != "en" || !res.Fallback {
		t.Errorf("language = %q fallback = %v, want en by fallback", res.Language, res.Fallback)
	}
	want := mining.InvertedIndex{"contact": {0}, "alice@example.com": {1}}
	if !reflect.DeepEqual(res.Index, want) {
		t.Errorf("index = %v, want %v", res.Index, want)
	}
}
