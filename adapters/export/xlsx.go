package export

import (
	"bytes"
	"fmt"

	"github.com/kris96tian/MOFAX-Online/domain/model"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is Excel's limit on sheet name length
const maxSheetName = 31

// XLSX renders the table as a single-sheet workbook named after the table
func XLSX(t *model.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Name
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, 0, len(t.Keys)+len(t.Columns))
	for _, k := range t.Keys {
		header = append(header, k)
	}
	for _, c := range t.Columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]interface{}, len(header))
	for i, values := range t.Values {
		for k, label := range t.Labels[i] {
			row[k] = label
		}
		for j, x := range values {
			row[len(t.Keys)+j] = x
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode renders the table in the requested format
func Encode(t *model.Table, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return CSV(t)
	case FormatXLSX:
		return XLSX(t)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
