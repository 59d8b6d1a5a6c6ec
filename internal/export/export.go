// Package export writes a study's raw rows as zstd-compressed JSON lines.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/runnerr0/testpilot/internal/event"
	"github.com/runnerr0/testpilot/internal/storage"
)

// Write encodes every event of seq as one JSON object per line, keyed by
// the study's column names, through a zstd encoder. It returns the number
// of rows written.
func Write(ctx context.Context, w io.Writer, study event.Study, seq iter.Seq2[storage.Event, error]) (int, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}

	schema := study.Schema()
	n := 0
	for e, err := range seq {
		if err != nil {
			enc.Close()
			return n, err
		}
		if err := ctx.Err(); err != nil {
			enc.Close()
			return n, err
		}

		line, err := json.Marshal(toRow(schema, e))
		if err != nil {
			enc.Close()
			return n, fmt.Errorf("encode row %d: %w", e.Seq, err)
		}
		if _, err := enc.Write(append(line, '\n')); err != nil {
			enc.Close()
			return n, fmt.Errorf("write row %d: %w", e.Seq, err)
		}
		n++
	}

	if err := enc.Close(); err != nil {
		return n, fmt.Errorf("flush zstd stream: %w", err)
	}
	return n, nil
}

// WriteFile writes the export to path atomically through a temp file.
func WriteFile(ctx context.Context, path string, study event.Study, seq iter.Seq2[storage.Event, error]) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}

	n, err := Write(ctx, f, study, seq)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("finalize export file: %w", err)
	}
	return n, nil
}

// Read decodes an export stream back into events.
func Read(r io.Reader, study event.Study) ([]storage.Event, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	schema := study.Schema()
	sc := bufio.NewScanner(zr)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 2<<20)

	events := []storage.Event{}
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var row map[string]json.RawMessage
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e, err := fromRow(schema, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return events, nil
}

// ReadFile decodes the export at path.
func ReadFile(path string, study event.Study) ([]storage.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, study)
}

// toRow maps an event onto the study's column names. A missing timestamp
// is written as null.
func toRow(schema storage.Schema, e storage.Event) map[string]any {
	row := map[string]any{
		"seq":                 e.Seq,
		schema.CodeColumn:     e.Code,
		schema.DataColumns[0]: e.Data1,
		schema.DataColumns[1]: e.Data2,
		schema.DataColumns[2]: e.Data3,
		"timestamp":           nil,
	}
	if !e.Timestamp.IsZero() {
		row["timestamp"] = e.Timestamp.UnixMilli()
	}
	return row
}

func fromRow(schema storage.Schema, row map[string]json.RawMessage) (storage.Event, error) {
	var e storage.Event
	fields := []struct {
		key string
		dst any
	}{
		{"seq", &e.Seq},
		{schema.CodeColumn, &e.Code},
		{schema.DataColumns[0], &e.Data1},
		{schema.DataColumns[1], &e.Data2},
		{schema.DataColumns[2], &e.Data3},
	}
	for _, f := range fields {
		raw, ok := row[f.key]
		if !ok {
			return storage.Event{}, fmt.Errorf("missing column %q", f.key)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return storage.Event{}, fmt.Errorf("column %q: %w", f.key, err)
		}
	}

	var ts *int64
	if raw, ok := row["timestamp"]; ok {
		if err := json.Unmarshal(raw, &ts); err != nil {
			return storage.Event{}, fmt.Errorf("column %q: %w", "timestamp", err)
		}
	}
	if ts != nil {
		e.Timestamp = time.UnixMilli(*ts)
	}
	return e, nil
}
