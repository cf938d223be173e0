package nlp

import (
	"context"
	"fmt"

	"github.com/cognicore/docminer/pkg/docminer/lexicon"
	"github.com/cognicore/docminer/pkg/docminer/stoplist"
)

// NER backends a ModelSpec can name.
const (
	NERNone  = ""
	NERProse = "prose"
)

// ModelSpec describes how to build the model of one language.
type ModelSpec struct {
	Dictionary string            // lemma dictionary language, "" for none
	Stemmer    string            // snowball stemmer name, used when Dictionary is ""
	Stoplist   *stoplist.Manager // nil means no stopwords
	Lexicon    *lexicon.Lexicon  // lemma exceptions, optional
	NER        string            // NERNone or NERProse
	Gazetteer  *Gazetteer        // keyword entities, optional

	// Recognizers are appended after the built-in ones.
	Recognizers []Recognizer
}

// Model annotates text of one language. Models are immutable after construction
// and safe for concurrent use.
type Model struct {
	lang        string
	tokenizer   *Tokenizer
	stops       *stoplist.Manager
	lemmatizer  *Lemmatizer
	recognizers []Recognizer
}

// NewModel assembles a model from ready components.
func NewModel(lang string, stops *stoplist.Manager, lemmatizer *Lemmatizer, recognizers ...Recognizer) *Model {
	if lemmatizer == nil {
		lemmatizer = NewLemmatizer(nil, "", nil)
	}
	return &Model{
		lang:        lang,
		tokenizer:   NewTokenizer(),
		stops:       stops,
		lemmatizer:  lemmatizer,
		recognizers: recognizers,
	}
}

// Language returns the model's language code.
func (m *Model) Language() string {
	return m.lang
}

// Annotate tokenizes text, fills lemma and stop flags, and runs every recognizer.
func (m *Model) Annotate(ctx context.Context, text string) (Annotation, error) {
	tokens := m.tokenizer.Tokenize(text)
	for i := range tokens {
		tok := &tokens[i]
		if tok.IsPunct || tok.IsSpace {
			tok.Lemma = tok.Text
			continue
		}
		tok.Lemma = m.lemmatizer.Lemma(tok.Text)
		tok.IsStop = m.stops.IsStop(tok.Text)
	}

	var entities []Entity
	for _, r := range m.recognizers {
		if err := ctx.Err(); err != nil {
			return Annotation{}, err
		}
		found, err := r.Recognize(ctx, text)
		if err != nil {
			return Annotation{}, fmt.Errorf("recognize entities (%s): %w", m.lang, err)
		}
		entities = append(entities, found...)
	}

	return Annotation{Tokens: tokens, Entities: entities}, nil
}
