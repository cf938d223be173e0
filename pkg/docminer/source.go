package docminer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cognicore/docminer/pkg/docminer/decode"
	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/store"
)

// Item is one document of a corpus. Ref is the persistence key; Format is the
// decoder tag, usually the file extension.
type Item struct {
	Ref    string
	Format string
	Raw    []byte
}

// Validate rejects refs that cannot be used as persistence keys.
func (it Item) Validate() error {
	if _, err := store.CleanRef(it.Ref); err != nil {
		return err
	}
	return nil
}

// Source produces corpus items. Next returns io.EOF when the corpus is exhausted
// and an *ItemError when a single item could not be read; any other error aborts
// the run. Next is called from one goroutine.
type Source interface {
	Next(ctx context.Context) (Item, error)
}

// ItemError marks one unreadable item. The run skips it and continues.
type ItemError struct {
	Ref string
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.Ref, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// SliceSource serves items from memory.
type SliceSource struct {
	items []Item
	pos   int
}

// NewSliceSource returns a source over items, in order.
func NewSliceSource(items ...Item) *SliceSource {
	return &SliceSource{items: items}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if s.pos >= len(s.items) {
		return Item{}, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it, nil
}

// PathSource reads files lazily, one per Next call. Refs are the slash-separated
// paths relative to root; the format is the lowercased extension.
type PathSource struct {
	root  string
	paths []string
	pos   int
}

// NewPathSource returns a source over paths. Relative paths are resolved
// against root.
func NewPathSource(root string, paths []string) *PathSource {
	return &PathSource{root: root, paths: append([]string(nil), paths...)}
}

// Len returns the number of paths the source will visit.
func (s *PathSource) Len() int { return len(s.paths) }

// Next implements Source.
func (s *PathSource) Next(ctx context.Context) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if s.pos >= len(s.paths) {
		return Item{}, io.EOF
	}
	p := s.paths[s.pos]
	s.pos++

	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, p)
	}
	ref, err := s.ref(full)
	if err != nil {
		return Item{}, &ItemError{Ref: p, Err: err}
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		return Item{}, &ItemError{Ref: ref, Err: err}
	}
	return Item{Ref: ref, Format: formatOf(full), Raw: raw}, nil
}

// Refs returns the refs of every listed path, in listing order. Paths that
// cannot be turned into a ref are left out.
func (s *PathSource) Refs() []string {
	refs := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(s.root, p)
		}
		if ref, err := s.ref(full); err == nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (s *PathSource) ref(full string) (string, error) {
	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", fmt.Errorf("%w: %s outside %s", internalerr.ErrInvalidInput, full, s.root)
	}
	return store.CleanRef(filepath.ToSlash(rel))
}

// DirOptions filters a directory walk.
type DirOptions struct {
	// SkipHidden skips files and directories whose name starts with a dot.
	SkipHidden bool
	// Extensions keeps only files with these extensions ("pdf" or ".pdf").
	// Empty keeps every regular file.
	Extensions []string
}

// NewDirSource walks root once and returns a source that reads the matching
// files lazily, in lexical order.
func NewDirSource(root string, opts DirOptions) (*PathSource, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: root path is required", internalerr.ErrInvalidInput)
	}

	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		if tag := decode.NormalizeTag(e); tag != "" {
			exts[tag] = struct{}{}
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// unreadable entries are left out of the listing
			return nil
		}
		if path != root && opts.SkipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if len(exts) > 0 {
			if _, ok := exts[formatOf(path)]; !ok {
				return nil
			}
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", internalerr.ErrNotFound, root, err)
		}
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return NewPathSource(root, paths), nil
}

func formatOf(path string) string {
	return decode.NormalizeTag(filepath.Ext(path))
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
