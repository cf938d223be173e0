package stoplist

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var defaults embed.FS

// File is the on-disk stoplist format.
type File struct {
	Terms []string `yaml:"terms"`
}

// Manager holds the stopwords of one language. Lookups are case-insensitive.
// A Manager is not safe for concurrent mutation; models only read from it.
type Manager struct {
	stops map[string]struct{}
}

// NewManager creates a new stoplist manager
func NewManager(initialStops []string) *Manager {
	stops := make(map[string]struct{}, len(initialStops))
	for _, s := range initialStops {
		if s = normalize(s); s != "" {
			stops[s] = struct{}{}
		}
	}
	return &Manager{stops: stops}
}

// Default returns the embedded stoplist for a language code, if one ships with the module.
func Default(lang string) (*Manager, bool) {
	data, err := defaults.ReadFile("data/" + strings.ToLower(lang) + ".yaml")
	if err != nil {
		return nil, false
	}
	terms, err := parse(data)
	if err != nil {
		return nil, false
	}
	return NewManager(terms), true
}

// Load reads a stoplist YAML file (`terms: [...]`).
func Load(path string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	terms, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse stoplist %s: %w", path, err)
	}
	return NewManager(terms), nil
}

func parse(data []byte) ([]string, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Terms, nil
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	if m == nil {
		return false
	}
	_, ok := m.stops[normalize(token)]
	return ok
}

// Add adds a token to the stoplist
func (m *Manager) Add(token string) {
	if token = normalize(token); token != "" {
		m.stops[token] = struct{}{}
	}
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, normalize(token))
}

// Len reports the number of stopwords.
func (m *Manager) Len() int {
	return len(m.stops)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// curly apostrophes are folded so "don’t" and "don't" match the same entry
	return strings.ReplaceAll(s, "’", "'")
}
