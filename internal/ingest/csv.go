// Package ingest parses transaction uploads into analyzable records.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Record is one parsed upload row.
type Record struct {
	Description string
	Amount      float64
	Date        time.Time
}

// RowError describes a row that could not be parsed. Row numbers are
// 1-based and count the header.
type RowError struct {
	Row    int
	Field  string
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: invalid %s: %s", e.Row, e.Field, e.Reason)
}

// Result holds the parsed rows and the rows that were skipped.
type Result struct {
	Records []Record
	Errors  []RowError
}

// Accepted in descending precedence; uploads from different banks disagree
// on date formatting.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// Parse reads a CSV upload with a header row naming at least description,
// amount and date columns (any order, case-insensitive). Malformed rows are
// collected as RowErrors instead of failing the upload; Parse returns an
// error only when the header itself is unusable.
func Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"description", "amount", "date"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv header missing %q column", required)
		}
	}

	result := &Result{}
	row := 1
	for {
		row++
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row, Field: "row", Reason: err.Error()})
			continue
		}

		record, rowErr := parseRow(row, cols, fields)
		if rowErr != nil {
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

func parseRow(row int, cols map[string]int, fields []string) (Record, *RowError) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	description := field("description")
	if description == "" {
		return Record{}, &RowError{Row: row, Field: "description", Reason: "must not be empty"}
	}

	amount, err := strconv.ParseFloat(field("amount"), 64)
	if err != nil {
		return Record{}, &RowError{Row: row, Field: "amount", Reason: "not a number"}
	}

	date, ok := ParseDate(field("date"))
	if !ok {
		return Record{}, &RowError{Row: row, Field: "date", Reason: "unrecognized date format"}
	}

	return Record{Description: description, Amount: amount, Date: date}, nil
}

// ParseDate tries the accepted upload date layouts in order.
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
