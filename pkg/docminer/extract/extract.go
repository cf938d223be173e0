package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
)

// Family names of the built-in extractors.
const (
	Email  = "email"
	Domain = "domain"
	MD5    = "md5"
	SHA1   = "sha1"
	SHA256 = "sha256"
	IPv4   = "ipv4"
)

// EntitiesKey is reserved for named entities in extracted data.
const EntitiesKey = "entities"

const octet = `(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])`

var builtins = []Extractor{
	{Name: Email, Pattern: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{Name: Domain, Pattern: regexp.MustCompile(`\b(?:[A-Za-z0-9](?:[A-Za-z0-9\-]{0,61}[A-Za-z0-9])?\.)+[A-Za-z]{2,63}\b`)},
	{Name: MD5, Pattern: regexp.MustCompile(`\b[A-Fa-f0-9]{32}\b`)},
	{Name: SHA1, Pattern: regexp.MustCompile(`\b[A-Fa-f0-9]{40}\b`)},
	{Name: SHA256, Pattern: regexp.MustCompile(`\b[A-Fa-f0-9]{64}\b`)},
	{Name: IPv4, Pattern: regexp.MustCompile(`\b(?:` + octet + `\.){3}` + octet + `\b`)},
}

// Extractor matches one identifier family over raw text.
type Extractor struct {
	Name    string
	Pattern *regexp.Regexp
}

// Set is an ordered, immutable collection of extractors.
type Set struct {
	extractors []Extractor
}

// Default returns the built-in identifier families.
func Default() *Set {
	s, _ := NewSet(builtins...)
	return s
}

// NewSet builds a set from the given extractors. Names must be unique,
// non-empty and must not collide with the entities key.
func NewSet(extractors ...Extractor) (*Set, error) {
	seen := make(map[string]struct{}, len(extractors))
	out := make([]Extractor, 0, len(extractors))
	for _, e := range extractors {
		name := strings.TrimSpace(e.Name)
		if name == "" || e.Pattern == nil {
			return nil, fmt.Errorf("%w: extractor needs a name and a pattern", internalerr.ErrInvalidConfig)
		}
		if name == EntitiesKey {
			return nil, fmt.Errorf("%w: extractor name %q is reserved", internalerr.ErrInvalidConfig, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate extractor %q", internalerr.ErrInvalidConfig, name)
		}
		seen[name] = struct{}{}
		out = append(out, Extractor{Name: name, Pattern: e.Pattern})
	}
	return &Set{extractors: out}, nil
}

// With returns a new set with additional extractors compiled from name/pattern pairs.
func (s *Set) With(patterns map[string]string) (*Set, error) {
	all := append([]Extractor(nil), s.extractors...)
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		expr := patterns[name]
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: extractor %q: %v", internalerr.ErrInvalidConfig, name, err)
		}
		all = append(all, Extractor{Name: name, Pattern: re})
	}
	return NewSet(all...)
}

// Names returns the family names in registration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.extractors))
	for i, e := range s.extractors {
		names[i] = e.Name
	}
	return names
}

// Extract runs every family over text. Every family appears in the result,
// with matches in text order and duplicates kept.
func (s *Set) Extract(text string) map[string][]string {
	out := make(map[string][]string, len(s.extractors))
	for _, e := range s.extractors {
		matches := e.Pattern.FindAllString(text, -1)
		if matches == nil {
			matches = []string{}
		}
		out[e.Name] = matches
	}
	return out
}
