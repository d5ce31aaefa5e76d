package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/walker"
)

func newRecord(id string, status Status, sig string) *BuildRecord {
	return &BuildRecord{
		ID:        id,
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  42,
		Status:    status,
		Sources:   []string{"site"},
		Signature: sig,
		Stats:     walker.Stats{FilesTransformed: 3, FilesReused: 1},
	}
}

func TestRecordAndQuery(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := t.Context()

	_, err = store.LastSuccess(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Record(ctx, newRecord("b1", StatusSuccess, "sig-1")))
	require.NoError(t, store.Record(ctx, newRecord("b2", StatusSuccess, "sig-2")))
	failed := newRecord("b3", StatusFailed, "sig-3")
	failed.Error = "parser failed"
	require.NoError(t, store.Record(ctx, failed))

	last, err := store.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b2", last.ID)
	assert.Equal(t, "sig-2", last.Signature)
	assert.Equal(t, int64(3), last.Stats.FilesTransformed)

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b3", recent[0].ID)
	assert.Equal(t, "parser failed", recent[0].Error)
	assert.Equal(t, "b2", recent[1].ID)
}

func TestDuplicateIDRejected(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Record(t.Context(), newRecord("dup", StatusSuccess, "s")))
	assert.Error(t, store.Record(t.Context(), newRecord("dup", StatusSuccess, "s")))
}

func TestPrune(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := t.Context()

	for i := range 5 {
		require.NoError(t, store.Record(ctx, newRecord(fmt.Sprintf("b%d", i), StatusSuccess, "s")))
	}
	n, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b4", recent[0].ID)
}

func TestPersistentStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sitebuilder", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(t.Context(), newRecord("b1", StatusSuccess, "s")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	last, err := reopened.LastSuccess(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "b1", last.ID)
}

func TestRecordJSONRoundTrip(t *testing.T) {
	r := newRecord("b1", StatusCancelled, "s")
	r.Skipped = []walker.SkippedEntry{{Path: "/src/x.md", Name: "x.md", Parser: "markdown", Error: "boom"}}
	data, err := r.ToJSON()
	require.NoError(t, err)
	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}
