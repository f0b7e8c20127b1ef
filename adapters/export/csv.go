// Package export serializes model tables for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/kris96tian/MOFAX-Online/domain/model"
)

// Format identifies a download encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx"
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// WriteCSV writes the header (label columns, then numeric columns) followed by one line per row
func WriteCSV(w io.Writer, t *model.Table) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(t.Keys)+len(t.Columns))
	header = append(header, t.Keys...)
	header = append(header, t.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, row := range t.Values {
		n := copy(record, t.Labels[i])
		for j, x := range row {
			record[n+j] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV renders the whole table in memory
func CSV(t *model.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseCSV reads back an export. The first keys header fields are labels,
// everything after them is parsed as float64.
func ParseCSV(r io.Reader, name string, keys int) (*model.Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV has no header row")
	}
	header := records[0]
	if keys > len(header) {
		return nil, fmt.Errorf("CSV header has %d fields, expected at least %d label columns", len(header), keys)
	}

	t := model.NewTable(name, header[:keys], header[keys:])
	values := make([]float64, len(header)-keys)
	for line, rec := range records[1:] {
		for j, field := range rec[keys:] {
			x, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line+2, header[keys+j], err)
			}
			values[j] = x
		}
		t.AppendRow(rec[:keys], values)
	}
	return t, nil
}
