package mining

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cognicore/docminer/pkg/docminer/extract"
	"github.com/cognicore/docminer/pkg/docminer/nlp"
)

// LemmaSequence is the ordered lemmas of the filtered words of a document.
type LemmaSequence []string

// InvertedIndex maps each lemma to the ascending token positions where it occurs.
type InvertedIndex map[string][]int

// ExtractedData is the structured output persisted per document: regex matches
// per family plus named entities.
//
// JSON form:
//
//	{"email": ["alice@example.com"], "ipv4": [], "entities": [["Alice", "PERSON"]]}
type ExtractedData struct {
	Matches  map[string][]string
	Entities []nlp.Entity
}

// MarshalJSON writes families as arrays of strings and entities as [text, label] pairs.
func (d ExtractedData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Matches)+1)
	for family, matches := range d.Matches {
		if matches == nil {
			matches = []string{}
		}
		out[family] = matches
	}
	pairs := make([][2]string, len(d.Entities))
	for i, e := range d.Entities {
		pairs[i] = [2]string{e.Text, e.Label}
	}
	out[extract.EntitiesKey] = pairs
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (d *ExtractedData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Matches = make(map[string][]string, len(raw))
	d.Entities = nil
	for key, value := range raw {
		if key == extract.EntitiesKey {
			var pairs [][2]string
			if err := json.Unmarshal(value, &pairs); err != nil {
				return fmt.Errorf("entities: %w", err)
			}
			d.Entities = make([]nlp.Entity, len(pairs))
			for i, p := range pairs {
				d.Entities[i] = nlp.Entity{Text: p[0], Label: p[1]}
			}
			continue
		}
		var matches []string
		if err := json.Unmarshal(value, &matches); err != nil {
			return fmt.Errorf("family %s: %w", key, err)
		}
		if matches == nil {
			matches = []string{}
		}
		d.Matches[key] = matches
	}
	return nil
}

// Families returns the family names, sorted.
func (d ExtractedData) Families() []string {
	names := make([]string, 0, len(d.Matches))
	for name := range d.Matches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of mining one document. It is never mutated after Mine returns.
type Result struct {
	Language         string // language whose model processed the text
	DetectedLanguage string // raw detector output, "" when undetermined
	Fallback         bool   // Language is the default because DetectedLanguage was unsupported

	Extracted ExtractedData
	Entities  []nlp.Entity
	Lemmas    LemmaSequence
	Index     InvertedIndex
}
