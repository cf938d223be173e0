package lexicon

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon maps inflected or irregular forms to their lemma:
//   - irregular verbs: went, gone, goes -> go
//   - irregular plurals: children -> child, mice -> mouse
//   - domain spellings the stemmer would mangle: datasets -> dataset
//
// Lookups are case-insensitive. A Lexicon is read-only once handed to a model.
type Lexicon struct {
	// lemma -> all forms (including the lemma itself)
	groups map[string][]string

	// form -> lemma
	reverseIndex map[string]string
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{
		groups:       make(map[string][]string),
		reverseIndex: make(map[string]string),
	}
}

// LoadFromYAML loads lemma groups from a YAML file.
//
// Expected format:
//
//	lemmas:
//	  - canonical: go
//	    variants: [went, gone, goes, going]
//	  - canonical: child
//	    variants: [children]
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config struct {
		Lemmas []struct {
			Canonical string   `yaml:"canonical"`
			Variants  []string `yaml:"variants"`
		} `yaml:"lemmas"`
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	lex := New()
	for _, entry := range config.Lemmas {
		if strings.TrimSpace(entry.Canonical) == "" {
			continue
		}
		lex.AddGroup(entry.Canonical, entry.Variants)
	}

	return lex, nil
}

// AddGroup registers forms for a lemma. The lemma is always part of its own group.
// Re-adding a lemma replaces its previous forms.
func (l *Lexicon) AddGroup(lemma string, forms []string) {
	lemma = strings.ToLower(strings.TrimSpace(lemma))

	if old, exists := l.groups[lemma]; exists {
		for _, f := range old {
			delete(l.reverseIndex, f)
		}
	}

	normalized := make([]string, 0, len(forms)+1)
	seen := map[string]bool{lemma: true}
	normalized = append(normalized, lemma)
	for _, f := range forms {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !seen[f] {
			normalized = append(normalized, f)
			seen[f] = true
		}
	}

	l.groups[lemma] = normalized
	for _, f := range normalized {
		l.reverseIndex[f] = lemma
	}
}

// Lookup returns the lemma registered for a form.
func (l *Lexicon) Lookup(form string) (string, bool) {
	if l == nil {
		return "", false
	}
	lemma, ok := l.reverseIndex[strings.ToLower(form)]
	return lemma, ok
}

// Stats returns statistics about the lexicon contents.
func (l *Lexicon) Stats() Stats {
	total := 0
	for _, forms := range l.groups {
		total += len(forms)
	}
	return Stats{Groups: len(l.groups), Forms: total}
}

// Stats holds statistics about lexicon contents.
type Stats struct {
	Groups int // number of lemmas
	Forms  int // number of forms across all groups, lemmas included
}
