// Package tabular ingests uploaded CSV files and keeps the resulting
// datasets in a copy-on-write store that backs the unified model.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// CSVExtension is the only upload extension the engine accepts.
const CSVExtension = ".csv"

var (
	// ErrUnsupportedFileType is returned when an upload is not a .csv file.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge is returned when an upload exceeds the configured
	// size cap.
	ErrFileTooLarge = errors.New("file too large")

	// ErrMissingHeader is returned when the file has no header row.
	ErrMissingHeader = errors.New("missing header row")
)

// Table is the parsed content of one uploaded file, before column profiling.
type Table struct {
	// Name is the dataset name derived from the filename.
	Name string
	// Columns holds the header cells; blank cells are synthesized as
	// column_N (1-based position).
	Columns []string
	// Rows is the retained sample, cell-aligned with Columns.
	Rows [][]string
	// RowCount is the full well-formed data-row count read from the file,
	// which can exceed len(Rows) when the sample limit cut retention off.
	RowCount int64
}

// ParseCSV reads an uploaded CSV into a Table. Parsing is best-effort in the
// way ad-hoc analyst uploads require: rows whose field count does not match
// the header are skipped, cells are whitespace-trimmed, and quoting is lax.
// At most sampleLimit rows are retained; RowCount still reports every
// well-formed row read.
func ParseCSV(filename string, r io.Reader, maxBytes int64, sampleLimit int) (*Table, error) {
	if !strings.EqualFold(filepath.Ext(filename), CSVExtension) {
		return nil, fmt.Errorf("%w: %q is not a .csv upload", ErrUnsupportedFileType, filepath.Base(filename))
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", ErrFileTooLarge, maxBytes)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrMissingHeader)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1 // field counts validated manually
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingHeader, err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = h
	}

	rows := make([][]string, 0, 256)
	var total int64
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if len(rec) != len(columns) {
			continue
		}
		total++
		if sampleLimit > 0 && len(rows) >= sampleLimit {
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}

	return &Table{
		Name:     DatasetName(filename),
		Columns:  columns,
		Rows:     rows,
		RowCount: total,
	}, nil
}

// DatasetName derives a queryable identifier from an uploaded filename:
// the extension is dropped and the stem is lowered, with separators folded
// to single underscores and other characters removed.
func DatasetName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(strings.TrimSpace(base))

	var b strings.Builder
	b.Grow(len(base))
	lastUnderscore := false
	for _, r := range base {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "dataset"
	}
	return name
}
