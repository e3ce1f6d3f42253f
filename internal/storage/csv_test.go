package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRows(matchID string) []PlayerMatchRow {
	rows := make([]PlayerMatchRow, 10)
	for i := range rows {
		rows[i] = PlayerMatchRow{
			MatchID:      matchID,
			Region:       "NA1",
			MatchLength:  1820,
			Win:          i < 5,
			TeamPosition: "TOP",
			Kills:        i,
			GoldAt15:     5000 + i,
		}
	}
	return rows
}

func TestRecordMatchesHeader(t *testing.T) {
	row := PlayerMatchRow{
		MatchID:        "NA1_1",
		Region:         "NA1",
		MatchLength:    1500,
		Win:            true,
		TeamPosition:   "JUNGLE",
		Kills:          4,
		Deaths:         2,
		Assists:        9,
		GoldAt15:       6100,
		CSAt15:         98,
		TeamFirstTower: true,
		TeamFirstBaron: true,
		TotalGold:      12000,
		TotalDamage:    21000,
		TotalCS:        180,
		DragonKills:    2,
		InhibitorKills: 1,
	}

	record := row.Record()
	require.Len(t, record, len(Header))
	assert.Equal(t, []string{
		"NA1_1", "NA1", "1500", "1", "JUNGLE",
		"4", "2", "9", "6100", "98",
		"1", "0", "1", "0",
		"12000", "21000", "180",
		"2", "0", "0", "1",
	}, record)
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dataset.csv")
	f := NewCSVFile(path)

	require.NoError(t, f.Append(testRows("NA1_1")))
	require.NoError(t, f.Append(testRows("NA1_2")))

	// A second destination value over the same file behaves like a restart.
	require.NoError(t, NewCSVFile(path).Append(testRows("NA1_3")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 31)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
	assert.Equal(t, 1, strings.Count(string(data), "match_length"))
}

func TestAppendEmptyFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, NewCSVFile(path).Append(testRows("NA1_1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "matchId,region,"))
}

func TestAppendNoRowsTouchesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, NewCSVFile(path).Append(nil))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadMatchIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	f := NewCSVFile(path)
	require.NoError(t, f.Append(testRows("NA1_1")))
	require.NoError(t, f.Append(testRows("EUW1_9")))

	ids, rows, err := ReadMatchIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_1", "EUW1_9"}, ids)
	assert.Equal(t, 20, rows)
}

func TestReadMatchIDsMissingFile(t *testing.T) {
	ids, rows, err := ReadMatchIDs(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, rows)
}

func TestReadMatchIDsMalformed(t *testing.T) {
	dir := t.TempDir()

	noColumn := filepath.Join(dir, "no_column.csv")
	require.NoError(t, os.WriteFile(noColumn, []byte("a,b\n1,2\n"), 0o644))
	_, _, err := ReadMatchIDs(noColumn)
	assert.Error(t, err)

	unterminated := filepath.Join(dir, "quote.csv")
	require.NoError(t, os.WriteFile(unterminated, []byte("matchId,region\n\"NA1_1,NA1\n"), 0o644))
	_, _, err = ReadMatchIDs(unterminated)
	assert.Error(t, err)
}

func TestReadMatchIDsShortRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.csv")
	require.NoError(t, os.WriteFile(path, []byte("region,matchId\nNA1,NA1_1\nNA1\nNA1,NA1_2\n"), 0o644))

	ids, rows, err := ReadMatchIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_1", "NA1_2"}, ids)
	assert.Equal(t, 3, rows)
}

// appendRaw simulates a write that stopped partway through a line.
func appendRaw(t *testing.T, path, text string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = file.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestReadMatchIDsCutOffLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, NewCSVFile(path).Append(testRows("NA1_A")))
	appendRaw(t, path, "NA1_B,NA1,15")

	ids, rows, err := ReadMatchIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_A", "NA1_B"}, ids)
	assert.Equal(t, 11, rows)
}

func TestAppendAfterCutOffLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	f := NewCSVFile(path)
	require.NoError(t, f.Append(testRows("NA1_A")))
	appendRaw(t, path, "NA1_B,NA1,15")

	require.NoError(t, f.Append(testRows("NA1_C")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "NA1_B")
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 21)
	for _, line := range lines[1:] {
		assert.Len(t, strings.Split(line, ","), len(Header), line)
	}

	ids, rows, err := ReadMatchIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA1_A", "NA1_C"}, ids)
	assert.Equal(t, 20, rows)
}

func TestAppendAfterCutOffHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte("matchId,reg"), 0o644))

	require.NoError(t, NewCSVFile(path).Append(testRows("NA1_1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(Header, ",")+"\n"))
	assert.Equal(t, 1, strings.Count(string(data), "matchId"))
}
