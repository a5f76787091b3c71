// Package inventory reads asset inventories into domain.AssetTable values.
package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
)

// ErrNoHeader is returned for an empty CSV document.
var ErrNoHeader = errors.New("inventory csv has no header row")

// ReadCSV reads a CSV inventory with a header row. Header names are trimmed; every
// column is kept so that NormalizeAssets can report which required one is missing.
// Short rows leave the missing cells empty.
func ReadCSV(r io.Reader) (domain.AssetTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return domain.AssetTable{}, ErrNoHeader
	}
	if err != nil {
		return domain.AssetTable{}, fmt.Errorf("failed to read header: %w", err)
	}

	table := domain.AssetTable{Columns: make([]string, len(header))}
	for i, name := range header {
		// Spreadsheet exports prepend a UTF-8 BOM to the first cell.
		table.Columns[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return domain.AssetTable{}, fmt.Errorf("line %d: %w", line, err)
		}
		if isEmptyLine(record) {
			continue
		}

		row := make(map[string]string, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (domain.AssetTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.AssetTable{}, fmt.Errorf("failed to open inventory: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// isEmptyLine reports a line without any delimiter. Delimiter-only rows are kept
// so that NormalizeAssets rejects their empty values.
func isEmptyLine(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}
