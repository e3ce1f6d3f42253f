package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	name    string
	batches [][]PlayerMatchRow
	err     error
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) WriteRows(_ context.Context, rows []PlayerMatchRow) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]PlayerMatchRow(nil), rows...))
	return nil
}

func TestBufferFlushesOnBatchMultiple(t *testing.T) {
	sink := &memorySink{name: "memory"}
	b := NewBuffer(sink, 2, nil)
	ctx := context.Background()

	flushed, err := b.Add(ctx, testRows("NA1_1"), 1)
	require.NoError(t, err)
	assert.False(t, flushed)
	assert.Equal(t, 10, b.Pending())

	flushed, err = b.Add(ctx, testRows("NA1_2"), 2)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Zero(t, b.Pending())
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 20)

	flushed, err = b.Add(ctx, testRows("NA1_3"), 3)
	require.NoError(t, err)
	assert.False(t, flushed)

	require.NoError(t, b.Flush(ctx))
	require.Len(t, sink.batches, 2)
	assert.Equal(t, 30, b.Flushed())
}

// The accepted count includes matches from earlier runs, so the first flush
// of a resumed crawl can come before batchSize new matches.
func TestBufferCountsResumedMatches(t *testing.T) {
	sink := &memorySink{name: "memory"}
	b := NewBuffer(sink, 50, nil)

	flushed, err := b.Add(context.Background(), testRows("NA1_1"), 100)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Len(t, sink.batches, 1)
}

func TestBufferFlushEmptyIsNoop(t *testing.T) {
	sink := &memorySink{name: "memory"}
	b := NewBuffer(sink, 0, nil)

	require.NoError(t, b.Flush(context.Background()))
	assert.Empty(t, sink.batches)
}

func TestBufferPrimaryFailureKeepsRows(t *testing.T) {
	sink := &memorySink{name: "memory", err: errors.New("disk full")}
	b := NewBuffer(sink, 1, nil)

	_, err := b.Add(context.Background(), testRows("NA1_1"), 1)
	require.Error(t, err)
	assert.Equal(t, 10, b.Pending())

	sink.err = nil
	require.NoError(t, b.Flush(context.Background()))
	assert.Zero(t, b.Pending())
}

func TestBufferMirrorFailureStillClearsRows(t *testing.T) {
	primary := &memorySink{name: "primary"}
	good := &memorySink{name: "good"}
	bad := &memorySink{name: "bad", err: errors.New("connection refused")}
	b := NewBuffer(primary, 1, nil, bad, good)

	_, err := b.Add(context.Background(), testRows("NA1_1"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Zero(t, b.Pending())
	assert.Len(t, primary.batches, 1)
	assert.Len(t, good.batches, 1)
}

func TestBufferWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	b := NewBuffer(NewCSVFile(path), 1, nil)

	_, err := b.Add(context.Background(), testRows("NA1_1"), 1)
	require.NoError(t, err)

	ids, rows, err := ReadMatchIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_1"}, ids)
	assert.Equal(t, 10, rows)
}
