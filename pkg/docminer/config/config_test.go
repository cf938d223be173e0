package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
)

func writeYAML(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "docminer.yaml", `
default_language: es
workers: 4
document_timeout: 30s
persist_lemma_blobs: true
progress_every: 10
model_cache_size: 2
store:
  backend: sqlite
  path: out/docminer.db
languages:
  es: {}
  en:
    dictionary: none
    stemmer: english
    ner: prose
    stopwords_add: [per]
    stopwords_remove: [not]
gazetteer: entities.yaml
extractors:
  - name: ticket
    pattern: 'TICKET-[0-9]+'
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DefaultLanguage != "es" || cfg.Workers != 4 || cfg.ProgressEvery != 10 || cfg.ModelCacheSize != 2 {
		t.Errorf("scalars = %+v", cfg)
	}
	if cfg.DocumentTimeout != 30*time.Second || !cfg.PersistLemmaBlobs {
		t.Errorf("timeout = %v blobs = %v", cfg.DocumentTimeout, cfg.PersistLemmaBlobs)
	}
	if cfg.Store != (StoreConfig{Backend: BackendSQLite, Path: "out/docminer.db"}) {
		t.Errorf("store = %+v", cfg.Store)
	}
	en := cfg.Languages["en"]
	if en.NER != "prose" || en.Dictionary != "none" || en.Stemmer != "english" {
		t.Errorf("en = %+v", en)
	}
	if !reflect.DeepEqual(en.StopwordsAdd, []string{"per"}) || !reflect.DeepEqual(en.StopwordsRemove, []string{"not"}) {
		t.Errorf("stopword adjustments = %v / %v", en.StopwordsAdd, en.StopwordsRemove)
	}
	if _, ok := cfg.Languages["es"]; !ok {
		t.Error("es should be configured")
	}
	if cfg.Gazetteer != "entities.yaml" {
		t.Errorf("gazetteer = %q", cfg.Gazetteer)
	}
	if want := []ExtractorConfig{{Name: "ticket", Pattern: "TICKET-[0-9]+"}}; !reflect.DeepEqual(cfg.Extractors, want) {
		t.Errorf("extractors = %+v", cfg.Extractors)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCMINER_DEFAULT_LANGUAGE", "fr")
	t.Setenv("DOCMINER_WORKERS", "8")
	t.Setenv("DOCMINER_STORE", "memory")
	t.Setenv("DOCMINER_OUT", "/tmp/elsewhere")
	t.Setenv("DOCMINER_PERSIST_BLOBS", "true")
	t.Setenv("DOCMINER_DOC_TIMEOUT", "2m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultLanguage != "fr" || cfg.Workers != 8 {
		t.Errorf("language = %q workers = %d", cfg.DefaultLanguage, cfg.Workers)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Store.Path != "/tmp/elsewhere" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if !cfg.PersistLemmaBlobs || cfg.DocumentTimeout != 2*time.Minute {
		t.Errorf("blobs = %v timeout = %v", cfg.PersistLemmaBlobs, cfg.DocumentTimeout)
	}
}

func TestLoadEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("DOCMINER_WORKERS", "many")
	t.Setenv("DOCMINER_DOC_TIMEOUT", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 1 || cfg.DocumentTimeout != 0 {
		t.Errorf("garbage env should keep defaults, got workers = %d timeout = %v", cfg.Workers, cfg.DocumentTimeout)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad yaml":             "workers: [",
		"zero workers":         "workers: 0",
		"unknown backend":      "store: {backend: s3, path: x}",
		"missing path":         "store: {backend: fs, path: ''}",
		"default not in table": "default_language: de\nlanguages:\n  en: {}\n",
		"empty extractor":      "extractors:\n  - name: x\n",
	}
	for name, body := range cases {
		path := writeYAML(t, dir, "c.yaml", body)
		if _, err := Load(path); !errors.Is(err, internalerr.ErrInvalidConfig) {
			t.Errorf("%s: err = %v, want ErrInvalidConfig", name, err)
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestLoadGazetteer(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "entities.yaml", `
entities:
  ORG:
    Acme Corp: [acme, acme corp]
  GPE:
    New York: [new york, nyc]
`)
	g, err := LoadGazetteer(path)
	if err != nil {
		t.Fatalf("LoadGazetteer: %v", err)
	}
	if got := g.Entities["ORG"]["Acme Corp"]; !reflect.DeepEqual(got, []string{"acme", "acme corp"}) {
		t.Errorf("Acme Corp keywords = %v", got)
	}
	if len(g.Entities["GPE"]) != 1 {
		t.Errorf("GPE = %v", g.Entities["GPE"])
	}
}
