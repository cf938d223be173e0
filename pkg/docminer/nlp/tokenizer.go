package nlp

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunks matching this pattern (after stripping wrapping punctuation) stay one word.
var atomicWord = regexp.MustCompile(`^(?:[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}|(?:https?|ftp)://\S+|www\.\S+)$`)

const (
	openers = `([{<"'“‘«`
	closers = `.,;:!?)]}>"'”’»…`
)

// Tokenizer splits text into word, punctuation and whitespace tokens.
//
// Rules:
//   - a single ASCII space separates tokens and produces nothing
//   - any other whitespace run becomes one space token
//   - emails and URLs are kept whole
//   - connectors (- ' . _ ’) between letters or digits stay inside the word
//     ("gpt-4", "don't", "e.g", "snake_case")
//   - every other non-alphanumeric rune is its own punctuation token
//
// Tokenizer is stateless and safe for concurrent use.
type Tokenizer struct{}

// NewTokenizer creates a tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize returns the token stream of text. Lemma and IsStop are left for the model to fill.
func (t *Tokenizer) Tokenize(text string) []Token {
	var tokens []Token
	emit := func(s string, start int, punct, space bool) {
		tokens = append(tokens, Token{
			Text:    s,
			Index:   len(tokens),
			Start:   start,
			IsPunct: punct,
			IsSpace: space,
		})
	}

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			j := i + size
			for j < len(text) {
				r2, s2 := utf8.DecodeRuneInString(text[j:])
				if !unicode.IsSpace(r2) {
					break
				}
				j += s2
			}
			if text[i:j] != " " {
				emit(text[i:j], i, false, true)
			}
			i = j
			continue
		}

		j := i + size
		for j < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[j:])
			if unicode.IsSpace(r2) {
				break
			}
			j += s2
		}
		t.splitChunk(text[i:j], i, emit)
		i = j
	}

	return tokens
}

func (t *Tokenizer) splitChunk(chunk string, base int, emit func(string, int, bool, bool)) {
	core := strings.TrimLeft(chunk, openers)
	lead := len(chunk) - len(core)
	core = strings.TrimRight(core, closers)

	if core != "" && atomicWord.MatchString(core) {
		emitPunct(chunk[:lead], base, emit)
		emit(core, base+lead, false, false)
		emitPunct(chunk[lead+len(core):], base+lead+len(core), emit)
		return
	}

	i := 0
	for i < len(chunk) {
		r, size := utf8.DecodeRuneInString(chunk[i:])
		if !isWordRune(r) {
			emit(chunk[i:i+size], base+i, true, false)
			i += size
			continue
		}

		j := i + size
		for j < len(chunk) {
			r2, s2 := utf8.DecodeRuneInString(chunk[j:])
			if isWordRune(r2) {
				j += s2
				continue
			}
			if isConnector(r2) && j+s2 < len(chunk) {
				if r3, _ := utf8.DecodeRuneInString(chunk[j+s2:]); isWordRune(r3) {
					j += s2
					continue
				}
			}
			break
		}
		emit(chunk[i:j], base+i, false, false)
		i = j
	}
}

func emitPunct(s string, base int, emit func(string, int, bool, bool)) {
	for off, r := range s {
		emit(string(r), base+off, true, false)
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}

func isConnector(r rune) bool {
	switch r {
	case '-', '\'', '.', '_', '’':
		return true
	}
	return false
}
