package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ReadRows reads the first sheet of an xlsx workbook, or a csv file, into rows keyed
// by the header text of the first row. Rows without any value are dropped. Only xlsx
// and csv can be read.
func ReadRows(r io.Reader, format Format) ([]map[string]string, error) {
	var table [][]string
	var err error
	switch format {
	case XLSX:
		table, err = readXLSX(r)
	case CSV:
		table, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: cannot import %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		log.Errorf("failed to read %s upload: %v", format, err)
		return nil, err
	}
	return KeyByHeader(table), nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// KeyByHeader turns a table whose first row is the header into header-keyed rows.
// Cells beyond the header width and blank header cells are ignored.
func KeyByHeader(table [][]string) []map[string]string {
	if len(table) == 0 {
		return nil
	}
	header := make([]string, len(table[0]))
	for i, h := range table[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]string, 0, len(table)-1)
	for _, cells := range table[1:] {
		row := make(map[string]string, len(header))
		filled := false
		for i, value := range cells {
			if i >= len(header) || header[i] == "" {
				continue
			}
			value = strings.TrimSpace(value)
			if value != "" {
				filled = true
			}
			row[header[i]] = value
		}
		if filled {
			rows = append(rows, row)
		}
	}
	return rows
}
