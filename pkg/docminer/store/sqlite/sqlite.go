package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/docminer/pkg/docminer/extract"
	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/mining"
	"github.com/cognicore/docminer/pkg/docminer/nlp"
	"github.com/cognicore/docminer/pkg/docminer/store"
)

// sqliteStore implements store.Store and store.RunRecorder using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// Store is the interface returned by OpenSQLite.
type Store interface {
	store.Store
	store.RunRecorder
	Runs(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the schema.
// Failing to open or initialize the database is internalerr.ErrStoreUnavailable.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}
	// One writer at a time; pragmas are per connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS lemma_blobs (
	ref TEXT PRIMARY KEY,
	lemmas TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS inverted_index (
	ref TEXT NOT NULL,
	lemma TEXT NOT NULL,
	positions TEXT NOT NULL,
	PRIMARY KEY(ref, lemma)
);

CREATE TABLE IF NOT EXISTS index_refs (
	ref TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_matches (
	ref TEXT NOT NULL,
	family TEXT NOT NULL,
	ord INTEGER NOT NULL,
	value TEXT,
	label TEXT,
	PRIMARY KEY(ref, family, ord)
);

CREATE TABLE IF NOT EXISTS extracted_refs (
	ref TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inverted_index_lemma ON inverted_index(lemma);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	processed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	report TEXT
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// PutLemmas stores the lemma blob of ref, replacing any previous one.
func (s *sqliteStore) PutLemmas(ctx context.Context, ref string, lemmas mining.LemmaSequence) error {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return err
	}
	if lemmas == nil {
		lemmas = mining.LemmaSequence{}
	}
	blob, err := json.Marshal(lemmas)
	if err != nil {
		return persistErr(store.Blobs, ref, err)
	}

	const stmt = `
INSERT INTO lemma_blobs (ref, lemmas, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(ref) DO UPDATE SET
	lemmas=excluded.lemmas,
	updated_at=excluded.updated_at;
`
	if _, err := s.db.ExecContext(ctx, stmt, ref, string(blob), now()); err != nil {
		return persistErr(store.Blobs, ref, err)
	}
	return nil
}

// PutInvertedIndex replaces every index row of ref in one transaction.
func (s *sqliteStore) PutInvertedIndex(ctx context.Context, ref string, index mining.InvertedIndex) error {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return err
	}
	if err := s.replaceIndex(ctx, ref, index); err != nil {
		return persistErr(store.InvertedIndex, ref, err)
	}
	return nil
}

func (s *sqliteStore) replaceIndex(ctx context.Context, ref string, index mining.InvertedIndex) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inverted_index WHERE ref=?`, ref); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO index_refs (ref, updated_at) VALUES (?, ?)
ON CONFLICT(ref) DO UPDATE SET updated_at=excluded.updated_at`, ref, now()); err != nil {
		return err
	}

	if len(index) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO inverted_index (ref, lemma, positions) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		lemmas := make([]string, 0, len(index))
		for lemma := range index {
			lemmas = append(lemmas, lemma)
		}
		sort.Strings(lemmas)
		for _, lemma := range lemmas {
			positions, err := json.Marshal(index[lemma])
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, ref, lemma, string(positions)); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// PutExtractedData replaces every extracted row of ref in one transaction.
// Each family keeps its match order through the ord column; entities are stored
// under the entities family with their label.
func (s *sqliteStore) PutExtractedData(ctx context.Context, ref string, data mining.ExtractedData) error {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return err
	}
	if err := s.replaceExtracted(ctx, ref, data); err != nil {
		return persistErr(store.ExtractedData, ref, err)
	}
	return nil
}

func (s *sqliteStore) replaceExtracted(ctx context.Context, ref string, data mining.ExtractedData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM extracted_matches WHERE ref=?`, ref); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO extracted_refs (ref, updated_at) VALUES (?, ?)
ON CONFLICT(ref) DO UPDATE SET updated_at=excluded.updated_at`, ref, now()); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO extracted_matches (ref, family, ord, value, label) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, family := range data.Families() {
		matches := data.Matches[family]
		if len(matches) == 0 {
			// ord -1 marks a family that was run and matched nothing
			if _, err := stmt.ExecContext(ctx, ref, family, -1, nil, nil); err != nil {
				return err
			}
			continue
		}
		for i, m := range matches {
			if _, err := stmt.ExecContext(ctx, ref, family, i, m, nil); err != nil {
				return err
			}
		}
	}
	for i, e := range data.Entities {
		if _, err := stmt.ExecContext(ctx, ref, extract.EntitiesKey, i, e.Text, e.Label); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetLemmas returns the lemma blob of ref.
func (s *sqliteStore) GetLemmas(ctx context.Context, ref string) (mining.LemmaSequence, error) {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return nil, err
	}
	var blob string
	err = s.db.QueryRowContext(ctx, `SELECT lemmas FROM lemma_blobs WHERE ref = ?`, ref).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(store.Blobs, ref)
	}
	if err != nil {
		return nil, err
	}
	var lemmas mining.LemmaSequence
	if err := json.Unmarshal([]byte(blob), &lemmas); err != nil {
		return nil, fmt.Errorf("decode lemmas %s: %w", ref, err)
	}
	return lemmas, nil
}

// GetInvertedIndex returns the inverted index of ref.
func (s *sqliteStore) GetInvertedIndex(ctx context.Context, ref string) (mining.InvertedIndex, error) {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return nil, err
	}
	if ok, err := s.exists(ctx, "index_refs", ref); err != nil {
		return nil, err
	} else if !ok {
		return nil, notFound(store.InvertedIndex, ref)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT lemma, positions FROM inverted_index WHERE ref = ?`, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(mining.InvertedIndex)
	for rows.Next() {
		var lemma, raw string
		if err := rows.Scan(&lemma, &raw); err != nil {
			return nil, err
		}
		var positions []int
		if err := json.Unmarshal([]byte(raw), &positions); err != nil {
			return nil, fmt.Errorf("decode positions %s/%s: %w", ref, lemma, err)
		}
		index[lemma] = positions
	}
	return index, rows.Err()
}

// GetExtractedData returns the extracted data of ref.
func (s *sqliteStore) GetExtractedData(ctx context.Context, ref string) (mining.ExtractedData, error) {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return mining.ExtractedData{}, err
	}
	if ok, err := s.exists(ctx, "extracted_refs", ref); err != nil {
		return mining.ExtractedData{}, err
	} else if !ok {
		return mining.ExtractedData{}, notFound(store.ExtractedData, ref)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT family, ord, value, label FROM extracted_matches
WHERE ref = ?
ORDER BY family, ord`, ref)
	if err != nil {
		return mining.ExtractedData{}, err
	}
	defer rows.Close()

	data := mining.ExtractedData{
		Matches:  make(map[string][]string),
		Entities: []nlp.Entity{},
	}
	for rows.Next() {
		var family string
		var ord int
		var value, label sql.NullString
		if err := rows.Scan(&family, &ord, &value, &label); err != nil {
			return mining.ExtractedData{}, err
		}
		if family == extract.EntitiesKey {
			data.Entities = append(data.Entities, nlp.Entity{Text: value.String, Label: label.String})
			continue
		}
		if ord < 0 {
			data.Matches[family] = []string{}
			continue
		}
		data.Matches[family] = append(data.Matches[family], value.String)
	}
	return data, rows.Err()
}

// Delete removes every artifact of ref.
func (s *sqliteStore) Delete(ctx context.Context, ref string) error {
	ref, err := store.CleanRef(ref)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"lemma_blobs", "inverted_index", "index_refs", "extracted_matches", "extracted_refs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE ref=?`, ref); err != nil {
			return fmt.Errorf("%w: delete %s: %w", internalerr.ErrPersistence, ref, err)
		}
	}
	return tx.Commit()
}

// Refs lists the refs holding an artifact of kind.
func (s *sqliteStore) Refs(ctx context.Context, kind store.Kind) ([]string, error) {
	var table string
	switch kind {
	case store.Blobs:
		table = "lemma_blobs"
	case store.InvertedIndex:
		table = "index_refs"
	case store.ExtractedData:
		table = "extracted_refs"
	default:
		return nil, fmt.Errorf("%w: unknown artifact kind %q", internalerr.ErrInvalidInput, kind)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT ref FROM `+table+` ORDER BY ref`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// RecordRun stores a run summary.
func (s *sqliteStore) RecordRun(ctx context.Context, run store.RunRecord) error {
	const stmt = `
INSERT INTO runs (id, started_at, finished_at, processed, skipped, report)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	finished_at=excluded.finished_at,
	processed=excluded.processed,
	skipped=excluded.skipped,
	report=excluded.report;
`
	_, err := s.db.ExecContext(ctx, stmt,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Processed,
		run.Skipped,
		string(run.Report),
	)
	return err
}

// Runs returns the most recent runs, newest first.
func (s *sqliteStore) Runs(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, processed, skipped, report
FROM runs
ORDER BY started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.RunRecord
	for rows.Next() {
		var r store.RunRecord
		var started, finished string
		var report sql.NullString
		if err := rows.Scan(&r.ID, &started, &finished, &r.Processed, &r.Skipped, &report); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if report.Valid {
			r.Report = []byte(report.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *sqliteStore) exists(ctx context.Context, table, ref string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE ref = ?`, ref).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func notFound(kind store.Kind, ref string) error {
	return fmt.Errorf("%w: %s/%s", internalerr.ErrNotFound, kind, ref)
}

func persistErr(kind store.Kind, ref string, err error) error {
	return fmt.Errorf("%w: %s/%s: %w", internalerr.ErrPersistence, kind, ref, err)
}
