package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/theirongolddev/salesdash/internal/model"
)

const maxLineSize = 1 << 20

// File reads the series from a local JSON array or JSONL export.
type File struct {
	path string
	dec  Decoder
}

// NewFile creates a file-backed source.
func NewFile(path string, dec Decoder) *File {
	return &File{path: path, dec: dec.withDefaults()}
}

// Fetch reads and decodes the file. Records are stably sorted by date,
// so repeated dates keep their file order.
func (f *File) Fetch(ctx context.Context) ([]model.SalesRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", f.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []map[string]json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("source: parsing %s: %w", f.path, err)
		}
	} else {
		rows, err = readJSONL(trimmed)
		if err != nil {
			return nil, fmt.Errorf("source: parsing %s: %w", f.path, err)
		}
	}

	records := make([]model.SalesRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := f.decodeRow(i, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})
	return records, nil
}

func (f *File) decodeRow(index int, row map[string]json.RawMessage) (model.SalesRecord, error) {
	date := ParseDate(row[f.dec.DateField])
	raw := row[f.dec.ValueField]
	value, err := ParseValue(raw)
	return f.dec.Record(index, date, value, string(raw), err)
}

func readJSONL(data []byte) ([]map[string]json.RawMessage, error) {
	var rows []map[string]json.RawMessage

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var row map[string]json.RawMessage
		if err := json.Unmarshal(b, &row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}
