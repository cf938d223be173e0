package lexicon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLexiconNew(t *testing.T) {
	lex := New()
	if lex == nil {
		t.Fatal("New() returned nil")
	}

	if stats := lex.Stats(); stats.Groups != 0 {
		t.Errorf("New lexicon should have 0 groups, got %d", stats.Groups)
	}
}

func TestLexiconAddGroup(t *testing.T) {
	lex := New()
	lex.AddGroup("go", []string{"went", "gone", "goes"})

	for _, form := range []string{"went", "gone", "goes", "go", "WENT"} {
		if got, ok := lex.Lookup(form); !ok || got != "go" {
			t.Errorf("Lookup(%q) = %q, %v, want 'go'", form, got, ok)
		}
	}

	if stats := lex.Stats(); stats.Groups != 1 || stats.Forms != 4 {
		t.Errorf("Stats = %+v, want 1 group / 4 forms", stats)
	}
}

func TestLexiconUnknown(t *testing.T) {
	lex := New()

	if _, ok := lex.Lookup("Unknown"); ok {
		t.Error("Lookup should miss unknown forms")
	}
}

func TestLexiconReplaceGroup(t *testing.T) {
	lex := New()
	lex.AddGroup("child", []string{"children", "kids"})
	lex.AddGroup("child", []string{"children"})

	if _, ok := lex.Lookup("kids"); ok {
		t.Error("old form should be removed when a group is replaced")
	}
	if got, _ := lex.Lookup("children"); got != "child" {
		t.Errorf("Lookup('children') = %q", got)
	}
}

func TestNilLexiconLookup(t *testing.T) {
	var lex *Lexicon
	if _, ok := lex.Lookup("went"); ok {
		t.Error("nil lexicon should never match")
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lemmas.yaml")
	content := `lemmas:
  - canonical: go
    variants: [went, gone]
  - canonical: mouse
    variants: [mice]
  - canonical: ""
    variants: [ignored]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}

	if stats := lex.Stats(); stats.Groups != 2 || stats.Forms != 5 {
		t.Errorf("Stats = %+v, want 2 groups / 5 forms", stats)
	}
	if got, _ := lex.Lookup("Mice"); got != "mouse" {
		t.Errorf("Lookup('Mice') = %q", got)
	}
}

func TestLoadFromYAMLErrors(t *testing.T) {
	if _, err := LoadFromYAML("/nonexistent/lemmas.yaml"); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("lemmas: [unclosed\n"), 0644)
	if _, err := LoadFromYAML(path); err == nil {
		t.Error("malformed YAML should fail")
	}
}
