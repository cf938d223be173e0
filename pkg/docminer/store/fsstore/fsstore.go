package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/mining"
	"github.com/cognicore/docminer/pkg/docminer/store"
)

const ext = ".json"

// Store writes each artifact as a JSON file:
//
//	<root>/blobs/<ref>.json
//	<root>/inverted_index/<ref>.json
//	<root>/extracted_data/<ref>.json
//
// Writes go to a temp file in the destination directory and are renamed into
// place, so readers never see a partial artifact.
type Store struct {
	root string
}

var _ store.Store = (*Store)(nil)

// Open creates the layout under root. A root that cannot be created or written
// fails with internalerr.ErrStoreUnavailable.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty store root", internalerr.ErrInvalidConfig)
	}
	for _, kind := range store.Kinds {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
		}
	}

	check, err := os.CreateTemp(root, ".wcheck-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}
	check.Close()
	os.Remove(check.Name())

	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func (s *Store) PutLemmas(ctx context.Context, ref string, lemmas mining.LemmaSequence) error {
	if lemmas == nil {
		lemmas = mining.LemmaSequence{}
	}
	return s.put(ctx, store.Blobs, ref, lemmas)
}

func (s *Store) PutInvertedIndex(ctx context.Context, ref string, index mining.InvertedIndex) error {
	if index == nil {
		index = mining.InvertedIndex{}
	}
	return s.put(ctx, store.InvertedIndex, ref, index)
}

func (s *Store) PutExtractedData(ctx context.Context, ref string, data mining.ExtractedData) error {
	return s.put(ctx, store.ExtractedData, ref, data)
}

func (s *Store) GetLemmas(ctx context.Context, ref string) (mining.LemmaSequence, error) {
	var lemmas mining.LemmaSequence
	err := s.get(ctx, store.Blobs, ref, &lemmas)
	return lemmas, err
}

func (s *Store) GetInvertedIndex(ctx context.Context, ref string) (mining.InvertedIndex, error) {
	var index mining.InvertedIndex
	err := s.get(ctx, store.InvertedIndex, ref, &index)
	return index, err
}

func (s *Store) GetExtractedData(ctx context.Context, ref string) (mining.ExtractedData, error) {
	var data mining.ExtractedData
	err := s.get(ctx, store.ExtractedData, ref, &data)
	return data, err
}

// Delete removes the three artifact files of ref.
func (s *Store) Delete(ctx context.Context, ref string) error {
	for _, kind := range store.Kinds {
		p, err := s.mapPath(kind, ref)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: delete %s/%s: %w", internalerr.ErrPersistence, kind, ref, err)
		}
	}
	return nil
}

// Refs walks the kind directory and returns the refs found, sorted.
func (s *Store) Refs(ctx context.Context, kind store.Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown artifact kind %q", internalerr.ErrInvalidInput, kind)
	}
	dir := filepath.Join(s.root, string(kind))

	var refs []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ext) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		refs = append(refs, strings.TrimSuffix(filepath.ToSlash(rel), ext))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	sort.Strings(refs)
	return refs, nil
}

// mapPath resolves <root>/<kind>/<ref>.json, refusing refs that leave the root.
func (s *Store) mapPath(kind store.Kind, ref string) (string, error) {
	cleaned, err := store.CleanRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, string(kind), filepath.FromSlash(cleaned)+ext), nil
}

func (s *Store) put(ctx context.Context, kind store.Kind, ref string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.mapPath(kind, ref)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %w", internalerr.ErrPersistence, kind, ref, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %s/%s: %w", internalerr.ErrPersistence, kind, ref, err)
	}
	if err := writeAtomic(dest, data); err != nil {
		return fmt.Errorf("%w: %s/%s: %w", internalerr.ErrPersistence, kind, ref, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, kind store.Kind, ref string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.mapPath(kind, ref)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", internalerr.ErrNotFound, kind, ref)
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", kind, ref, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", kind, ref, err)
	}
	return nil
}

func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = os.Chmod(tmpPath, 0o644)
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
