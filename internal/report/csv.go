package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadCSV reads one category sheet from a CSV file. The sheet name (and
// so the issue_type) is the file name without its extension.
//
// A header row naming a part-number column is honored; otherwise column
// 0 is the part number and column 1, when present, the owner.
func LoadCSV(path string) (Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sheet{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sheet, err := ReadSheet(name, f)
	if err != nil {
		return Sheet{}, fmt.Errorf("read %s: %w", path, err)
	}
	return sheet, nil
}

// ReadSheet parses CSV content into a named sheet.
func ReadSheet(name string, r io.Reader) (Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return Sheet{}, err
	}

	sheet := Sheet{Name: name}
	partCol, ownerCol := 0, 1
	start := 0
	if len(records) > 0 {
		if p, o, ok := headerColumns(records[0]); ok {
			partCol, ownerCol = p, o
			start = 1
		}
	}
	for _, rec := range records[start:] {
		if partCol >= len(rec) {
			continue
		}
		row := Row{PartNumber: rec[partCol]}
		if ownerCol >= 0 && ownerCol < len(rec) {
			row.Owner = rec[ownerCol]
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

// headerColumns detects a header row and returns the part-number and
// owner column indexes. Owner is -1 when the header has no owner column.
func headerColumns(header []string) (int, int, bool) {
	part, owner := -1, -1
	for i, cell := range header {
		switch normalizeHeader(cell) {
		case "partnumber", "part", "partno":
			part = i
		case "owner", "team", "responsible":
			owner = i
		}
	}
	if part < 0 {
		return 0, 1, false
	}
	return part, owner, true
}

func normalizeHeader(cell string) string {
	cell = strings.ToLower(strings.TrimSpace(cell))
	for _, ch := range []string{" ", "_", "-", "."} {
		cell = strings.ReplaceAll(cell, ch, "")
	}
	return cell
}
