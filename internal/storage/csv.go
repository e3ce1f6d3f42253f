package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// tailWindow bounds how far back Append looks for the end of the last
// complete record.
const tailWindow = 64 * 1024

// CSVFile is the append-only output destination. The header row is written
// exactly once, by the first append that finds the file missing or empty.
type CSVFile struct {
	mu   sync.Mutex
	path string
}

// NewCSVFile creates a destination at path. Nothing is touched on disk until
// the first Append.
func NewCSVFile(path string) *CSVFile {
	return &CSVFile{path: path}
}

// Path returns the destination path.
func (f *CSVFile) Path() string {
	return f.path
}

// Name identifies the destination in logs and metrics.
func (f *CSVFile) Name() string {
	return "csv"
}

// Append writes rows to the end of the file, creating it (and its parent
// directory) with a header if needed.
func (f *CSVFile) Append(rows []PlayerMatchRow) error {
	if len(rows) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	size, err := f.size()
	if err != nil {
		return err
	}
	if size > 0 {
		if size, err = trimPartialLine(f.path, size); err != nil {
			return err
		}
	}
	needHeader := size == 0

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}

	buf := bufio.NewWriterSize(file, 64*1024)
	w := csv.NewWriter(buf)
	if needHeader {
		if err := w.Write(Header); err != nil {
			file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			file.Close()
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush records: %w", err)
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync %s: %w", f.path, err)
	}
	return file.Close()
}

// size returns the current file size, 0 when the file does not exist.
func (f *CSVFile) size() (int64, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", f.path, err)
	}
	return info.Size(), nil
}

// trimPartialLine drops an unterminated last line, left behind when a write
// was cut off, so the next append starts on a fresh line. It returns the new
// file size.
func trimPartialLine(path string, size int64) (int64, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return size, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	n := min(size, tailWindow)
	tail := make([]byte, n)
	if _, err := file.ReadAt(tail, size-n); err != nil && !errors.Is(err, io.EOF) {
		return size, fmt.Errorf("failed to read tail of %s: %w", path, err)
	}
	if tail[n-1] == '\n' {
		return size, nil
	}

	cut := bytes.LastIndexByte(tail, '\n')
	if cut < 0 && n < size {
		// No record boundary in reach; terminate the line instead.
		if _, err := file.WriteAt([]byte{'\n'}, size); err != nil {
			return size, fmt.Errorf("failed to terminate last line of %s: %w", path, err)
		}
		return size + 1, file.Sync()
	}

	newSize := size - n + int64(cut) + 1
	if err := file.Truncate(newSize); err != nil {
		return size, fmt.Errorf("failed to trim partial line of %s: %w", path, err)
	}
	return newSize, file.Sync()
}

// ReadMatchIDs scans a CSV destination and returns the distinct match ids in
// first-seen order plus the total number of data rows. A missing file yields
// no ids and no error; a file without a matchId column or with a broken
// record is an error. Short records, such as a last line cut off mid-write,
// still contribute their match id when they reach that column.
func ReadMatchIDs(path string) ([]string, int, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.ReuseRecord = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	col := -1
	for i, name := range header {
		if name == MatchIDColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, 0, fmt.Errorf("%s has no %q column", path, MatchIDColumn)
	}

	seen := make(map[string]struct{})
	var ids []string
	rows := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read record %d: %w", rows+1, err)
		}
		rows++
		if len(record) <= col {
			continue
		}
		id := record[col]
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, rows, nil
}

// WriteRows lets the CSV destination act as the buffer's primary sink.
func (f *CSVFile) WriteRows(_ context.Context, rows []PlayerMatchRow) error {
	return f.Append(rows)
}
