package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-crawler/internal/storage"
)

func TestSQLiteMirrorWritesRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "mirror.db")
	mirror, err := NewSQLiteMirror(path)
	require.NoError(t, err)
	defer mirror.Close()

	ctx := context.Background()
	assert.Equal(t, "sqlite", mirror.Name())
	require.NoError(t, mirror.WriteRows(ctx, sampleRows("EUW1_1", 10)))
	require.NoError(t, mirror.WriteRows(ctx, sampleRows("EUW1_2", 10)))
	require.NoError(t, mirror.WriteRows(ctx, nil))

	count, err := mirror.CountMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var rows, wins, gold int
	err = mirror.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(win), MAX(gold_at_15) FROM player_match_rows WHERE match_id = ?`, "EUW1_1",
	).Scan(&rows, &wins, &gold)
	require.NoError(t, err)
	assert.Equal(t, 10, rows)
	assert.Equal(t, 5, wins)
	assert.Equal(t, 5500, gold)
}

func TestSQLiteMirrorReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mirror.db")
	first, err := NewSQLiteMirror(path)
	require.NoError(t, err)
	require.NoError(t, first.WriteRows(context.Background(), sampleRows("NA1_1", 10)))
	require.NoError(t, first.Close())

	second, err := NewSQLiteMirror(path)
	require.NoError(t, err)
	defer second.Close()

	count, err := second.CountMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteMirrorAsBufferSink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mirror, err := NewSQLiteMirror(filepath.Join(dir, "mirror.db"))
	require.NoError(t, err)
	defer mirror.Close()

	buffer := storage.NewBuffer(storage.NewCSVFile(filepath.Join(dir, "out.csv")), 1, nil, mirror)
	flushed, err := buffer.Add(context.Background(), sampleRows("NA1_9", 10), 1)
	require.NoError(t, err)
	assert.True(t, flushed)

	count, err := mirror.CountMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
