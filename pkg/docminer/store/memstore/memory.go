package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/mining"
	"github.com/cognicore/docminer/pkg/docminer/nlp"
	"github.com/cognicore/docminer/pkg/docminer/store"
)

// Store is an in-memory implementation of store.Store for tests and dry runs.
// Values are copied on the way in and out.
type Store struct {
	mu        sync.RWMutex
	lemmas    map[string]mining.LemmaSequence
	indexes   map[string]mining.InvertedIndex
	extracted map[string]mining.ExtractedData
	runs      []store.RunRecord

	// FailPut, when set, is returned by every put. Tests use it to simulate storage faults.
	FailPut error
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.RunRecorder = (*Store)(nil)
)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		lemmas:    make(map[string]mining.LemmaSequence),
		indexes:   make(map[string]mining.InvertedIndex),
		extracted: make(map[string]mining.ExtractedData),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// PutLemmas implements store.Store.
func (s *Store) PutLemmas(ctx context.Context, ref string, lemmas mining.LemmaSequence) error {
	ref, err := s.prepare(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lemmas[ref] = append(mining.LemmaSequence{}, lemmas...)
	return nil
}

// PutInvertedIndex implements store.Store.
func (s *Store) PutInvertedIndex(ctx context.Context, ref string, index mining.InvertedIndex) error {
	ref, err := s.prepare(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[ref] = copyIndex(index)
	return nil
}

// PutExtractedData implements store.Store.
func (s *Store) PutExtractedData(ctx context.Context, ref string, data mining.ExtractedData) error {
	ref, err := s.prepare(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extracted[ref] = copyExtracted(data)
	return nil
}

// GetLemmas implements store.Store.
func (s *Store) GetLemmas(ctx context.Context, ref string) (mining.LemmaSequence, error) {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	lemmas, ok := s.lemmas[ref]
	if !ok {
		return nil, notFound(store.Blobs, ref)
	}
	return append(mining.LemmaSequence{}, lemmas...), nil
}

// GetInvertedIndex implements store.Store.
func (s *Store) GetInvertedIndex(ctx context.Context, ref string) (mining.InvertedIndex, error) {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	index, ok := s.indexes[ref]
	if !ok {
		return nil, notFound(store.InvertedIndex, ref)
	}
	return copyIndex(index), nil
}

// GetExtractedData implements store.Store.
func (s *Store) GetExtractedData(ctx context.Context, ref string) (mining.ExtractedData, error) {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return mining.ExtractedData{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.extracted[ref]
	if !ok {
		return mining.ExtractedData{}, notFound(store.ExtractedData, ref)
	}
	return copyExtracted(data), nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, ref string) error {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lemmas, ref)
	delete(s.indexes, ref)
	delete(s.extracted, ref)
	return nil
}

// Refs implements store.Store.
func (s *Store) Refs(ctx context.Context, kind store.Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []string
	switch kind {
	case store.Blobs:
		for ref := range s.lemmas {
			refs = append(refs, ref)
		}
	case store.InvertedIndex:
		for ref := range s.indexes {
			refs = append(refs, ref)
		}
	case store.ExtractedData:
		for ref := range s.extracted {
			refs = append(refs, ref)
		}
	default:
		return nil, fmt.Errorf("%w: unknown artifact kind %q", internalerr.ErrInvalidInput, kind)
	}
	sort.Strings(refs)
	return refs, nil
}

// RecordRun implements store.RunRecorder.
func (s *Store) RecordRun(ctx context.Context, run store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Report = append([]byte(nil), run.Report...)
	s.runs = append(s.runs, run)
	return nil
}

// Runs returns the recorded runs in order.
func (s *Store) Runs() []store.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.RunRecord(nil), s.runs...)
}

func (s *Store) prepare(ref string) (string, error) {
	if s.FailPut != nil {
		return "", s.FailPut
	}
	return store.CleanRef(ref)
}

func notFound(kind store.Kind, ref string) error {
	return fmt.Errorf("%w: %s/%s", internalerr.ErrNotFound, kind, ref)
}

func copyIndex(index mining.InvertedIndex) mining.InvertedIndex {
	out := make(mining.InvertedIndex, len(index))
	for lemma, positions := range index {
		out[lemma] = append([]int(nil), positions...)
	}
	return out
}

func copyExtracted(data mining.ExtractedData) mining.ExtractedData {
	out := mining.ExtractedData{
		Matches:  make(map[string][]string, len(data.Matches)),
		Entities: append([]nlp.Entity(nil), data.Entities...),
	}
	for family, matches := range data.Matches {
		out.Matches[family] = append([]string{}, matches...)
	}
	return out
}
