package nlp

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
)

// Recognizer finds named entities in text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, text string) ([]Entity, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, text string) ([]Entity, error) {
	return f(ctx, text)
}

// ProseRecognizer is the English statistical NER (PERSON, GPE, ORG, ...).
type ProseRecognizer struct {
	// prose models carry no concurrency guarantee
	mu    sync.Mutex
	model *prose.Model
}

// NewProseRecognizer loads the bundled prose model.
func NewProseRecognizer() (*ProseRecognizer, error) {
	seed, err := prose.NewDocument("", prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("%w: prose: %v", internalerr.ErrModelUnavailable, err)
	}
	return &ProseRecognizer{model: seed.Model}, nil
}

// Recognize runs the model over text.
func (p *ProseRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	p.mu.Lock()
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false), prose.UsingModel(p.model))
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	ents := doc.Entities()
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, Entity{Text: e.Text, Label: e.Label})
	}
	return out, nil
}

// Gazetteer recognizes entities from keyword lists: label -> name -> keywords.
// Matching is case-insensitive on whole words; the entity text is the matched span.
type Gazetteer struct {
	rules []gazetteerRule
}

type gazetteerRule struct {
	label   string
	pattern *regexp.Regexp
}

// NewGazetteer compiles the keyword table. Labels and names are visited in sorted order.
func NewGazetteer(entities map[string]map[string][]string) *Gazetteer {
	g := &Gazetteer{}

	labels := make([]string, 0, len(entities))
	for label := range entities {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		names := make([]string, 0, len(entities[label]))
		for name := range entities[label] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			keywords := entities[label][name]
			if len(keywords) == 0 {
				keywords = []string{name}
			}
			alts := make([]string, 0, len(keywords))
			for _, kw := range keywords {
				if kw = strings.TrimSpace(kw); kw != "" {
					alts = append(alts, regexp.QuoteMeta(kw))
				}
			}
			if len(alts) == 0 {
				continue
			}
			// longest alternative first so "new york city" wins over "new york"
			sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
			g.rules = append(g.rules, gazetteerRule{
				label:   label,
				pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`),
			})
		}
	}

	return g
}

// Len reports the number of named entries.
func (g *Gazetteer) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rules)
}

// Recognize returns every keyword match, in rule order then text order.
func (g *Gazetteer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if g == nil {
		return nil, nil
	}
	var out []Entity
	for _, rule := range g.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range rule.pattern.FindAllString(text, -1) {
			out = append(out, Entity{Text: m, Label: rule.label})
		}
	}
	return out, nil
}
