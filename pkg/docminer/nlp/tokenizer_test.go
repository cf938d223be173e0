package nlp

import (
	"reflect"
	"testing"
)

func texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Text
	}
	return out
}

func TestTokenizerEmailSentence(t *testing.T) {
	tokens := NewTokenizer().Tokenize("Contact alice@example.com now.")

	want := []string{"Contact", "alice@example.com", "now", "."}
	if got := texts(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}

	starts := []int{0, 8, 26, 29}
	for i, tok := range tokens {
		if tok.Index != i {
			t.Errorf("token %d has index %d", i, tok.Index)
		}
		if tok.Start != starts[i] {
			t.Errorf("token %q start = %d, want %d", tok.Text, tok.Start, starts[i])
		}
	}
	if !tokens[3].IsPunct {
		t.Error("'.' should be punctuation")
	}
}

func TestTokenizerWhitespace(t *testing.T) {
	tokens := NewTokenizer().Tokenize("Hello,  world\n")

	want := []string{"Hello", ",", "  ", "world", "\n"}
	if got := texts(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
	if !tokens[2].IsSpace || !tokens[4].IsSpace {
		t.Error("whitespace runs should be space tokens")
	}
	if tokens[0].IsSpace || tokens[0].IsPunct {
		t.Error("'Hello' should be a word")
	}
}

func TestTokenizerConnectors(t *testing.T) {
	tokens := NewTokenizer().Tokenize("gpt-4 don't e.g. snake_case --flag")

	want := []string{"gpt-4", "don't", "e.g", ".", "snake_case", "-", "-", "flag"}
	if got := texts(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("tokens = %q, want %q", got, want)
	}
}

func TestTokenizerURLWrappedInPunctuation(t *testing.T) {
	tokens := NewTokenizer().Tokenize("(see https://example.com/a).")

	want := []string{"(", "see", "https://example.com/a", ")", "."}
	if got := texts(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("tokens = %q, want %q", got, want)
	}
}

func TestTokenizerUnicode(t *testing.T) {
	tokens := NewTokenizer().Tokenize("café naïve über")

	want := []string{"café", "naïve", "über"}
	if got := texts(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("tokens = %q, want %q", got, want)
	}
	if tokens[1].Start != len("café ") {
		t.Errorf("start should be a byte offset, got %d", tokens[1].Start)
	}
}

func TestTokenizerEmpty(t *testing.T) {
	if tokens := NewTokenizer().Tokenize(""); len(tokens) != 0 {
		t.Errorf("empty text should produce no tokens, got %v", tokens)
	}
}

func TestTokenFiltered(t *testing.T) {
	tests := []struct {
		tok  Token
		want bool
	}{
		{Token{Text: "cat"}, true},
		{Token{Text: "the", IsStop: true}, false},
		{Token{Text: ".", IsPunct: true}, false},
		{Token{Text: "\t", IsSpace: true}, false},
	}
	for _, tt := range tests {
		if got := tt.tok.Filtered(); got != tt.want {
			t.Errorf("Filtered(%+v) = %v, want %v", tt.tok, got, tt.want)
		}
	}
}
