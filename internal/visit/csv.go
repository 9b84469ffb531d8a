package visit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names recognised by ParseCSV, matched case-insensitively.
// The country column may be called "country" or "code".
var (
	countryColumns   = []string{"country", "code"}
	ageColumn        = "age"
	visitYearColumn  = "visit_year"
	visitMonthColumn = "visit_month"
)

// ParseCSV reads visit selections from CSV with a header row.
//
// Each row names a country by alpha-2 code and gives either an "age" or a
// "visit_year"/"visit_month" pair. Example:
//
//	country,age,visit_year,visit_month
//	GB,0,,
//	ES,,2000,7
func ParseCSV(r io.Reader) ([]Selection, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	// Create case-insensitive column mapping
	columnMap := make(map[string]int)
	for i, col := range header {
		columnMap[strings.ToLower(strings.TrimSpace(col))] = i
	}

	countryCol := -1
	for _, name := range countryColumns {
		if col, exists := columnMap[name]; exists {
			countryCol = col
			break
		}
	}
	if countryCol < 0 {
		return nil, fmt.Errorf("country column not found in CSV. Available columns: %v", header)
	}

	var selections []Selection
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		line++

		sel, skip, err := parseRow(record, columnMap, countryCol)
		if err != nil {
			return nil, fmt.Errorf("error parsing CSV row %d: %w", line, err)
		}
		if !skip {
			selections = append(selections, sel)
		}
	}

	return selections, nil
}

// parseRow converts one CSV record. Rows with an empty country cell are
// skipped.
func parseRow(record []string, columnMap map[string]int, countryCol int) (Selection, bool, error) {
	cell := func(name string) string {
		col, ok := columnMap[name]
		if !ok || col >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[col])
	}

	if countryCol >= len(record) || strings.TrimSpace(record[countryCol]) == "" {
		return Selection{}, true, nil
	}
	sel := Selection{Code: strings.TrimSpace(record[countryCol])}

	if s := cell(ageColumn); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil {
			return Selection{}, false, fmt.Errorf("unable to parse age '%s': %w", s, err)
		}
		sel.Age = &age
	}

	year, month := cell(visitYearColumn), cell(visitMonthColumn)
	if year != "" || month != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return Selection{}, false, fmt.Errorf("unable to parse visit year '%s': %w", year, err)
		}
		m := 1
		if month != "" {
			m, err = strconv.Atoi(month)
			if err != nil {
				return Selection{}, false, fmt.Errorf("unable to parse visit month '%s': %w", month, err)
			}
		}
		sel.Visit = &YearMonth{Year: y, Month: m}
	}

	return sel, false, nil
}
