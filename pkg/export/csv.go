package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is an ordered tabular payload ready for rendering. Widths holds
// relative column weights for paginated formats; nil means equal widths.
type Table struct {
	Title   string
	Columns []string
	Widths  []float64
	Rows    [][]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	if t.Widths != nil && len(t.Widths) != len(t.Columns) {
		return fmt.Errorf("%d width weights for %d columns", len(t.Widths), len(t.Columns))
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// RenderCSV encodes the table as CSV, header row first.
func RenderCSV(t Table) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for i, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
