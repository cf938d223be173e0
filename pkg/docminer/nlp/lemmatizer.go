package nlp

import (
	"strings"

	"github.com/kljensen/snowball"

	"github.com/cognicore/docminer/pkg/docminer/lexicon"
)

// Snowball stemmer names by ISO 639-1 code.
var stemmers = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"nb": "norwegian",
	"hu": "hungarian",
}

// StemmerFor returns the snowball stemmer name for a language code, or "" when none ships.
func StemmerFor(lang string) string {
	return stemmers[strings.ToLower(lang)]
}

// ValidStemmer reports whether name is one of the snowball stemmers above.
func ValidStemmer(name string) bool {
	for _, s := range stemmers {
		if s == name {
			return true
		}
	}
	return false
}

// Lemmatizer reduces words to their lemma.
// Order: lexicon exception, then the lemma dictionary, then the lowercased word.
// Languages without a dictionary use the snowball stem in its place.
type Lemmatizer struct {
	dict    *Dictionary
	stemmer string
	lexicon *lexicon.Lexicon
}

// NewLemmatizer creates a lemmatizer. Every argument is optional; the stemmer
// only applies when dict is nil.
func NewLemmatizer(dict *Dictionary, stemmer string, lex *lexicon.Lexicon) *Lemmatizer {
	return &Lemmatizer{dict: dict, stemmer: stemmer, lexicon: lex}
}

// Lemma returns the lemma of word.
func (l *Lemmatizer) Lemma(word string) string {
	lower := strings.ToLower(word)
	if lemma, ok := l.lexicon.Lookup(lower); ok {
		return lemma
	}
	if !plainWord(lower) {
		return lower
	}
	if l.dict != nil {
		if lemma, ok := l.dict.Lookup(lower); ok {
			return lemma
		}
		return lower
	}
	if l.stemmer == "" {
		return lower
	}
	stem, err := snowball.Stem(lower, l.stemmer, true)
	if err != nil || stem == "" {
		return lower
	}
	return stem
}

// Only plain words are lemmatized; emails, URLs, numbers and hyphenated
// compounds keep their surface form.
func plainWord(word string) bool {
	for _, r := range word {
		if r == '@' || r == '/' || r == '.' || r == '-' || r == '_' || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
