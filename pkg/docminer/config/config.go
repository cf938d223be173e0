package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
)

// Store backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the docminer configuration file.
type Config struct {
	DefaultLanguage   string        `yaml:"default_language"`
	Workers           int           `yaml:"workers"`
	DocumentTimeout   time.Duration `yaml:"document_timeout"`
	PersistLemmaBlobs bool          `yaml:"persist_lemma_blobs"`
	ProgressEvery     int           `yaml:"progress_every"`
	ModelCacheSize    int           `yaml:"model_cache_size"`

	Store StoreConfig `yaml:"store"`

	// Languages is the supported-language table. Empty means the built-in table.
	Languages map[string]LanguageConfig `yaml:"languages"`

	// Gazetteer is a YAML file of keyword entities applied to every language.
	Gazetteer string `yaml:"gazetteer"`

	// Extractors adds regex families to the built-in ones.
	Extractors []ExtractorConfig `yaml:"extractors"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // fs, sqlite or memory
	Path    string `yaml:"path"`    // output root for fs, database file for sqlite
}

// LanguageConfig describes one supported language.
type LanguageConfig struct {
	Dictionary string `yaml:"dictionary"` // lemma dictionary code; "" picks one from the code, "none" disables it
	Stemmer    string `yaml:"stemmer"`    // snowball name, used without a dictionary; "" picks one from the code, "none" disables stemming
	Stoplist   string `yaml:"stoplist"`   // YAML file; "" uses the embedded list, "none" disables stopwords
	Lexicon    string `yaml:"lexicon"`    // YAML lemma exceptions, optional
	NER        string `yaml:"ner"`        // "" or "prose"

	// StopwordsAdd and StopwordsRemove adjust the stoplist after it is loaded.
	StopwordsAdd    []string `yaml:"stopwords_add"`
	StopwordsRemove []string `yaml:"stopwords_remove"`
}

// ExtractorConfig is an extra regex family.
type ExtractorConfig struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DefaultLanguage: "en",
		Workers:         1,
		ProgressEvery:   100,
		Store: StoreConfig{
			Backend: BackendFS,
			Path:    "out",
		},
	}
}

// Load reads a YAML config on top of Default and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DOCMINER_* environment variables. Values that
// do not parse are ignored.
func (c *Config) ApplyEnv() {
	c.DefaultLanguage = getEnv("DOCMINER_DEFAULT_LANGUAGE", c.DefaultLanguage)
	c.Workers = getEnvAsInt("DOCMINER_WORKERS", c.Workers)
	c.Store.Backend = getEnv("DOCMINER_STORE", c.Store.Backend)
	c.Store.Path = getEnv("DOCMINER_OUT", c.Store.Path)
	c.PersistLemmaBlobs = getEnvAsBool("DOCMINER_PERSIST_BLOBS", c.PersistLemmaBlobs)
	c.DocumentTimeout = getEnvAsDuration("DOCMINER_DOC_TIMEOUT", c.DocumentTimeout)
}

// Validate checks the config for values no component can use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultLanguage) == "" {
		return fmt.Errorf("%w: default_language is required", internalerr.ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", internalerr.ErrInvalidConfig)
	}
	if c.DocumentTimeout < 0 || c.ProgressEvery < 0 || c.ModelCacheSize < 0 {
		return fmt.Errorf("%w: negative document_timeout, progress_every or model_cache_size", internalerr.ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case BackendFS, BackendSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("%w: store.path is required for %s", internalerr.ErrInvalidConfig, c.Store.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown store backend %q", internalerr.ErrInvalidConfig, c.Store.Backend)
	}
	if len(c.Languages) > 0 {
		if _, ok := c.Languages[strings.ToLower(c.DefaultLanguage)]; !ok {
			return fmt.Errorf("%w: default_language %q is not in languages", internalerr.ErrInvalidConfig, c.DefaultLanguage)
		}
	}
	for _, e := range c.Extractors {
		if strings.TrimSpace(e.Name) == "" || e.Pattern == "" {
			return fmt.Errorf("%w: extractor needs a name and a pattern", internalerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Gazetteer is the keyword entity file: label -> canonical name -> keywords.
type Gazetteer struct {
	Entities map[string]map[string][]string `yaml:"entities"`
}

// LoadGazetteer loads keyword entities from a YAML file
func LoadGazetteer(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var g Gazetteer
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, err
	}

	return &g, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
