package fsstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/docminer/pkg/docminer/internalerr"
	"github.com/cognicore/docminer/pkg/docminer/mining"
	"github.com/cognicore/docminer/pkg/docminer/nlp"
	"github.com/cognicore/docminer/pkg/docminer/store"
)

func TestLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st, err := Open(root)
	require.NoError(t, err)

	require.NoError(t, st.PutLemmas(ctx, "doc1", mining.LemmaSequence{"contact", "alice@example.com"}))
	require.NoError(t, st.PutInvertedIndex(ctx, "doc1", mining.InvertedIndex{"contact": {0}}))
	require.NoError(t, st.PutExtractedData(ctx, "doc1", mining.ExtractedData{
		Matches:  map[string][]string{"email": {"alice@example.com"}},
		Entities: []nlp.Entity{{Text: "Alice", Label: "PERSON"}},
	}))

	for _, rel := range []string{"blobs/doc1.json", "inverted_index/doc1.json", "extracted_data/doc1.json"} {
		assert.FileExists(t, filepath.Join(root, rel))
	}

	raw, err := os.ReadFile(filepath.Join(root, "extracted_data", "doc1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":["alice@example.com"],"entities":[["Alice","PERSON"]]}`, string(raw))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := Open(t.TempDir())
	require.NoError(t, err)

	lemmas := mining.LemmaSequence{"a", "b", "a"}
	index := mining.InvertedIndex{"a": {0, 4}, "b": {2}}
	data := mining.ExtractedData{Matches: map[string][]string{"ipv4": {}}}

	require.NoError(t, st.PutLemmas(ctx, "mail/inbox.mbox", lemmas))
	require.NoError(t, st.PutInvertedIndex(ctx, "mail/inbox.mbox", index))
	require.NoError(t, st.PutExtractedData(ctx, "mail/inbox.mbox", data))

	gotLemmas, err := st.GetLemmas(ctx, "mail/inbox.mbox")
	require.NoError(t, err)
	assert.Equal(t, lemmas, gotLemmas)

	gotIndex, err := st.GetInvertedIndex(ctx, "mail/inbox.mbox")
	require.NoError(t, err)
	assert.Equal(t, index, gotIndex)

	gotData, err := st.GetExtractedData(ctx, "mail/inbox.mbox")
	require.NoError(t, err)
	assert.Equal(t, []string{}, gotData.Matches["ipv4"])

	refs, err := st.Refs(ctx, store.InvertedIndex)
	require.NoError(t, err)
	assert.Equal(t, []string{"mail/inbox.mbox"}, refs)
}

func TestOverwrite(t *testing.T) {
	ctx := context.Background()
	st, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.PutInvertedIndex(ctx, "doc", mining.InvertedIndex{"old": {0}, "shared": {1}}))
	require.NoError(t, st.PutInvertedIndex(ctx, "doc", mining.InvertedIndex{"shared": {3}}))

	got, err := st.GetInvertedIndex(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, mining.InvertedIndex{"shared": {3}}, got)

	entries, err := os.ReadDir(filepath.Join(st.Root(), "inverted_index"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should be left behind")
}

func TestNotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	st, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = st.GetLemmas(ctx, "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)

	require.NoError(t, st.PutLemmas(ctx, "doc", mining.LemmaSequence{"x"}))
	require.NoError(t, st.Delete(ctx, "doc"))
	require.NoError(t, st.Delete(ctx, "doc"))

	_, err = st.GetLemmas(ctx, "doc")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestRejectsEscapingRefs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st, err := Open(filepath.Join(root, "store"))
	require.NoError(t, err)

	for _, ref := range []string{"../escape", "/abs", ""} {
		err := st.PutLemmas(ctx, ref, mining.LemmaSequence{"x"})
		assert.ErrorIs(t, err, internalerr.ErrInvalidInput, "ref %q", ref)
	}
	assert.NoFileExists(t, filepath.Join(root, "escape.json"))
}

func TestOpenUnavailable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Open(filepath.Join(file, "sub"))
	assert.ErrorIs(t, err, internalerr.ErrStoreUnavailable)
}

func TestRefsUnknownKind(t *testing.T) {
	st, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = st.Refs(context.Background(), store.Kind("nope"))
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}
