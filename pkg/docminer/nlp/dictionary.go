package nlp

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/de"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/aaaton/golem/v4/dicts/es"
	"github.com/aaaton/golem/v4/dicts/fr"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
)

// Lemma dictionaries shipped with the binary, by ISO 639-1 code.
var dictionaryPacks = map[string]func() golem.LanguagePack{
	"en": func() golem.LanguagePack { return en.New() },
	"de": func() golem.LanguagePack { return de.New() },
	"es": func() golem.LanguagePack { return es.New() },
	"fr": func() golem.LanguagePack { return fr.New() },
}

// Loaded dictionaries are large and immutable, so they are shared process-wide.
var (
	dictMu     sync.Mutex
	dictLoaded = make(map[string]*Dictionary)
)

// Dictionary maps inflected word forms to their dictionary form.
type Dictionary struct {
	lang string
	lem  *golem.Lemmatizer
}

// HasDictionary reports whether a lemma dictionary ships for lang.
func HasDictionary(lang string) bool {
	_, ok := dictionaryPacks[strings.ToLower(lang)]
	return ok
}

// DictionaryLanguages returns the codes with a shipped dictionary, sorted.
func DictionaryLanguages() []string {
	out := make([]string, 0, len(dictionaryPacks))
	for code := range dictionaryPacks {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// LoadDictionary returns the dictionary of lang, decompressing it on first use.
func LoadDictionary(lang string) (*Dictionary, error) {
	lang = strings.ToLower(lang)
	pack, ok := dictionaryPacks[lang]
	if !ok {
		return nil, fmt.Errorf("%w: no lemma dictionary for %q", internalerr.ErrModelUnavailable, lang)
	}

	dictMu.Lock()
	defer dictMu.Unlock()
	if d, ok := dictLoaded[lang]; ok {
		return d, nil
	}
	lem, err := golem.New(pack())
	if err != nil {
		return nil, fmt.Errorf("%w: lemma dictionary %s: %v", internalerr.ErrModelUnavailable, lang, err)
	}
	d := &Dictionary{lang: lang, lem: lem}
	dictLoaded[lang] = d
	return d, nil
}

// Language returns the dictionary's language code.
func (d *Dictionary) Language() string {
	return d.lang
}

// Lookup returns the dictionary form of a lowercase word.
// A nil dictionary knows no words.
func (d *Dictionary) Lookup(word string) (string, bool) {
	if d == nil || !d.lem.InDict(word) {
		return "", false
	}
	lemma := d.lem.Lemma(word)
	if lemma == "" {
		return "", false
	}
	return strings.ToLower(lemma), true
}
