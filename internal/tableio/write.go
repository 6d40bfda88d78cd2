package tableio

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/credit-delta/internal/model"
	"github.com/sells-group/credit-delta/internal/table"
)

// Format is an output file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a format name. An empty name is resolved from the
// extension of path, falling back to fallback.
func ParseFormat(name, path string, fallback Format) (Format, error) {
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch Format(name) {
	case FormatCSV, FormatXLSX, FormatJSONL:
		return Format(name), nil
	case "":
		return fallback, nil
	}
	return "", eris.Errorf("tableio: unsupported format %q", name)
}

// WriteTable writes t to path as CSV or XLSX.
func WriteTable(path string, format Format, t *table.Table) error {
	switch format {
	case FormatXLSX:
		return saveXLSX(path, "engineered", t.Names(), t.Len(), func(i int, col string) string {
			return t.Cell(col, i)
		})
	case FormatCSV:
		return writeFile(path, func(w io.Writer) error { return WriteCSV(w, t) })
	}
	return eris.Errorf("tableio: cannot write table as %q", format)
}

// WriteCSV writes t with a header row. Nulls are written as empty cells.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	names := t.Names()
	if err := cw.Write(names); err != nil {
		return eris.Wrap(err, "tableio: write header")
	}

	rec := make([]string, len(names))
	for i := 0; i < t.Len(); i++ {
		for j, n := range names {
			rec[j] = t.Cell(n, i)
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "tableio: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "tableio: flush csv")
}

// WritePairs writes report pairs to path in the given format.
func WritePairs(path string, format Format, pairs []model.ReportPair) error {
	switch format {
	case FormatJSONL:
		return writeFile(path, func(w io.Writer) error { return EncodePairsJSONL(w, pairs) })
	case FormatCSV:
		return writeFile(path, func(w io.Writer) error { return EncodePairsCSV(w, pairs) })
	case FormatXLSX:
		header := []string{"customer_no", "customer_info", "customer_credit_update"}
		return saveXLSX(path, "pairs", header, len(pairs), func(i int, col string) string {
			p := pairs[i]
			switch col {
			case "customer_no":
				return p.CustomerNo
			case "customer_info":
				return p.CustomerInfo
			default:
				return p.CustomerCreditUpdate
			}
		})
	}
	return eris.Errorf("tableio: cannot write pairs as %q", format)
}

// EncodePairsJSONL writes one JSON object per line.
func EncodePairsJSONL(w io.Writer, pairs []model.ReportPair) error {
	enc := json.NewEncoder(w)
	for _, p := range pairs {
		if err := enc.Encode(p); err != nil {
			return eris.Wrapf(err, "tableio: encode pair %s", p.CustomerNo)
		}
	}
	return nil
}

// EncodePairsCSV writes pairs with a header row.
func EncodePairsCSV(w io.Writer, pairs []model.ReportPair) error {
	cw := csv.NewWriter(w)
	if err := csvutil.NewEncoder(cw).Encode(pairs); err != nil {
		return eris.Wrap(err, "tableio: encode pairs csv")
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "tableio: flush csv")
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "tableio: create %s", path)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "tableio: close %s", path)
}

func saveXLSX(path, sheetName string, header []string, rows int, cell func(i int, col string) string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "tableio: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for i := 0; i < rows; i++ {
		r := sheet.AddRow()
		for _, h := range header {
			r.AddCell().SetString(cell(i, h))
		}
	}

	return eris.Wrapf(f.Save(path), "tableio: save %s", path)
}
