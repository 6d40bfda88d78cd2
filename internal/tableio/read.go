// Package tableio reads paired bureau tables from CSV or XLSX and writes
// engineered tables and report pairs back out.
package tableio

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/credit-delta/internal/table"
)

// DefaultNullValues are the cell texts read as null.
var DefaultNullValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL"}

// Options configures table reading.
type Options struct {
	Delimiter  rune   // default ','
	Encoding   string // source charset label, e.g. "windows-1252"; empty means UTF-8
	LazyQuotes bool
	SheetName  string // xlsx only; overrides SheetIndex
	SheetIndex int    // xlsx only
	Schema     Schema
	NullValues []string // default DefaultNullValues
}

// ReadTable reads a CSV or XLSX file, chosen by extension, into a table.
func ReadTable(ctx context.Context, path string, opts Options) (*table.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := readXLSX(path, opts)
		if err != nil {
			return nil, err
		}
		return build(rows, opts)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "tableio: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, opts)
	}
}

// ReadCSV reads a header row followed by data rows from r.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) (*table.Table, error) {
	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, eris.Wrapf(err, "tableio: unknown encoding %q", opts.Encoding)
		}
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "tableio: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "tableio: read csv row")
		}
		rows = append(rows, record)
	}
	return build(rows, opts)
}

func readXLSX(path string, opts Options) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tableio: open xlsx %s", path)
	}

	var sheet *xlsx.Sheet
	switch {
	case opts.SheetName != "":
		s, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("tableio: sheet %q not found", opts.SheetName)
		}
		sheet = s
	case opts.SheetIndex < len(f.Sheets):
		sheet = f.Sheets[opts.SheetIndex]
	default:
		return nil, eris.Errorf("tableio: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// build turns raw rows, header first, into a typed table.
func build(rows [][]string, opts Options) (*table.Table, error) {
	if len(rows) == 0 {
		return nil, eris.New("tableio: input has no header row")
	}
	header := rows[0]
	data := rows[1:]

	nulls := opts.NullValues
	if nulls == nil {
		nulls = DefaultNullValues
	}
	isNull := make(map[string]bool, len(nulls))
	for _, n := range nulls {
		isNull[n] = true
	}

	short := 0
	for i, rec := range data {
		if len(rec) > len(header) {
			return nil, eris.Errorf("tableio: row %d has %d fields, header has %d", i+2, len(rec), len(header))
		}
		if len(rec) < len(header) {
			short++
		}
	}
	if short > 0 {
		zap.L().Warn("tableio: short rows padded with nulls", zap.Int("rows", short))
	}

	t := table.New(len(data))
	for j, name := range header {
		name = strings.TrimSpace(name)
		if t.Has(name) {
			return nil, eris.Errorf("tableio: duplicate column %q", name)
		}

		vals := make([]string, len(data))
		valid := make([]bool, len(data))
		for i, rec := range data {
			if j < len(rec) && !isNull[strings.TrimSpace(rec[j])] {
				vals[i], valid[i] = rec[j], true
			}
		}

		kind, declared := resolveKind(opts.Schema, name)
		if !declared {
			kind = inferKind(vals, valid)
		}

		var col *table.Column
		if kind == table.Numeric {
			floats := make([]float64, len(vals))
			for i, v := range vals {
				floats[i] = table.ParseFloat(v)
			}
			col = table.NewFloatColumn(name, floats)
		} else {
			col = table.NewStringColumn(name, kind, vals, valid)
		}
		if err := t.Add(col); err != nil {
			return nil, eris.Wrapf(err, "tableio: add column %q", name)
		}
	}
	return t, nil
}

// inferKind is Numeric when every present cell parses as a number. An
// all-null column is Numeric.
func inferKind(vals []string, valid []bool) table.Kind {
	for i, v := range vals {
		if valid[i] && math.IsNaN(table.ParseFloat(v)) {
			return table.Text
		}
	}
	return table.Numeric
}
