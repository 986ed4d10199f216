package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"udisecli/internal/dataset"
	"udisecli/pkg/contracts/domain"
)

// RawSource is one parsed source file before typing or joining. Every record
// has exactly len(Header) cells and every cell is already trimmed.
type RawSource struct {
	Name     string
	Path     string
	Header   []string
	Records  [][]string
	Warnings []domain.SchemaWarning
}

// ReadSource reads a single CSV or Excel source file into string records.
// Header names are normalized to lower snake case so they can be matched
// against the column registry regardless of how the export was labelled.
func ReadSource(path string) (*RawSource, error) {
	name := filepath.Base(path)

	var (
		header  []string
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		header, records, err = readCSV(path)
	case ".xlsx", ".xlsm":
		header, records, err = readExcel(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	src := &RawSource{Name: name, Path: path}
	var keep []int
	src.Header, keep, src.Warnings = normalizeHeader(header, name)
	src.Records = alignRecords(records, keep)
	return src, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Sources in the wild have ragged rows; alignment happens after parsing.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptySource
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		records = append(records, record)
	}
	return header, records, nil
}

func readExcel(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrEmptySource
	}
	// UDISE facility exports carry their table on the first sheet.
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptySource
	}
	return rows[0], rows[1:], nil
}

// normalizeHeader trims, lower-cases and snake-cases column names. Blank
// names are synthesized from their position and a duplicate name keeps only
// its first occurrence; both anomalies produce a SchemaWarning. keep holds
// the source cell index of each surviving column.
func normalizeHeader(header []string, source string) (names []string, keep []int, warnings []domain.SchemaWarning) {
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		if i == 0 {
			raw = strings.TrimPrefix(raw, "\uFEFF")
		}
		name := normalizeName(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
			warnings = append(warnings, domain.SchemaWarning{
				Column: name,
				Source: source,
				Reason: "blank header cell",
			})
		}
		if seen[name] {
			warnings = append(warnings, domain.SchemaWarning{
				Column: name,
				Source: source,
				Reason: "duplicate column skipped",
			})
			continue
		}
		seen[name] = true
		names = append(names, name)
		keep = append(keep, i)
	}
	return names, keep, warnings
}

func normalizeName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), "_")
}

// alignRecords projects each record onto the surviving header cells, padding
// short rows with empty cells and trimming every value once.
func alignRecords(records [][]string, keep []int) [][]string {
	aligned := make([][]string, len(records))
	for r, record := range records {
		row := make([]string, len(keep))
		for j, i := range keep {
			if i < len(record) {
				row[j] = strings.TrimSpace(record[i])
			}
		}
		aligned[r] = row
	}
	return aligned
}

// missingToken reports whether a cell spells an absent value. The exporter
// writes missing cells as empty strings; upstream exports also use the usual
// NA spellings.
func missingToken(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null":
		return true
	}
	return false
}

// numericShare is the fraction of non-missing cells that must parse as
// numbers before an unregistered column is typed numeric.
const numericShare = 0.8

// typeColumns converts aligned string records into typed columns. Registered
// columns take their kind from the registry; unregistered ones are inferred
// from their values. Unparseable cells in numeric columns become missing and
// are reported once per column. origins names the source file each column
// came from and may be nil.
func typeColumns(header []string, origins []string, records [][]string, reg *dataset.Registry) ([]*dataset.Column, []domain.SchemaWarning) {
	cols := make([]*dataset.Column, 0, len(header))
	var warnings []domain.SchemaWarning

	for i, name := range header {
		origin := ""
		if i < len(origins) {
			origin = origins[i]
		}
		cells := make([]string, len(records))
		for r, record := range records {
			if i < len(record) {
				cells[r] = record[i]
			}
		}

		if inferKind(name, cells, reg) == dataset.KindNumeric {
			nums := make([]float64, len(cells))
			ok := make([]bool, len(cells))
			bad := 0
			for r, cell := range cells {
				if missingToken(cell) {
					continue
				}
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					bad++
					continue
				}
				nums[r] = v
				ok[r] = true
			}
			if bad > 0 {
				warnings = append(warnings, domain.SchemaWarning{
					Column: name,
					Source: origin,
					Reason: fmt.Sprintf("%d non-numeric values treated as missing", bad),
				})
			}
			cols = append(cols, dataset.NewNumericColumn(name, nums, ok))
			continue
		}

		text := make([]string, len(cells))
		for r, cell := range cells {
			if !missingToken(cell) {
				text[r] = cell
			}
		}
		cols = append(cols, dataset.NewTextColumn(name, text))
	}
	return cols, warnings
}

func inferKind(name string, cells []string, reg *dataset.Registry) dataset.Kind {
	if rc, ok := reg.Lookup(name); ok {
		if rc.ColumnKind() == domain.ColumnNumeric {
			return dataset.KindNumeric
		}
		return dataset.KindText
	}
	seen, numeric := 0, 0
	for _, cell := range cells {
		if missingToken(cell) {
			continue
		}
		seen++
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			numeric++
		}
	}
	if seen == 0 {
		return dataset.KindText
	}
	if float64(numeric) >= numericShare*float64(seen) {
		return dataset.KindNumeric
	}
	return dataset.KindText
}
