package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Record is one CSV row keyed by column name.
type Record map[string]string

var priorityColumns = []string{"text", "source", "classification", "confidence"}

// ErrMissingColumn is returned when a labeled file lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// ReadCSV reads a headed CSV file into records.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()
	return DecodeCSV(f)
}

// DecodeCSV reads headed CSV rows from r. An empty input yields no records.
func DecodeCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", len(records)+1, err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Columns returns the output column order for records: text, source,
// classification and confidence when present, then the rest alphabetically.
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for _, c := range priorityColumns {
		if seen[c] {
			cols = append(cols, c)
			delete(seen, c)
		}
	}
	rest := make([]string, 0, len(seen))
	for c := range seen {
		rest = append(rest, c)
	}
	slices.Sort(rest)
	return append(cols, rest...)
}

// WriteCSV writes records to path. No records produce an empty file.
func WriteCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	if err := EncodeCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeCSV writes a header and one row per record.
func EncodeCSV(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	cols := Columns(records)
	writer := csv.NewWriter(w)
	if err := writer.Write(cols); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, c := range cols {
			row[i] = rec[c]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadExamples reads a labeled CSV file with text and label columns.
func ReadExamples(path string) ([]Example, error) {
	records, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	return ExamplesFromRecords(records)
}

// ExamplesFromRecords converts records to validated examples.
func ExamplesFromRecords(records []Record) ([]Example, error) {
	examples := make([]Example, 0, len(records))
	for i, rec := range records {
		text, ok := rec["text"]
		if !ok {
			return nil, fmt.Errorf("%w: text", ErrMissingColumn)
		}
		label, ok := rec["label"]
		if !ok {
			return nil, fmt.Errorf("%w: label", ErrMissingColumn)
		}
		e := Example{Text: text, Label: strings.TrimSpace(label)}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		examples = append(examples, e)
	}
	return examples, nil
}

// Records converts examples back to CSV records.
func Records(examples []Example) []Record {
	out := make([]Record, len(examples))
	for i, e := range examples {
		out[i] = Record{"text": e.Text, "label": e.Label}
	}
	return out
}
