package core

import "strings"

// Table is the normalized, display-ready output of an ingestion.
//
// A Table is never mutated after it is built; every ingestion produces a new
// one. Rows may be shorter than Headers when the underlying source is ragged.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// EmptyTable returns a table with no headers and no rows.
func EmptyTable() Table {
	return Table{Headers: []string{}, Rows: [][]string{}}
}

// IsEmpty reports whether the table has neither headers nor rows.
func (t Table) IsEmpty() bool {
	return len(t.Headers) == 0 && len(t.Rows) == 0
}

// ResultColumn returns the index of the first header equal to "result"
// (case-insensitive). The second return value is false when there is none.
func (t Table) ResultColumn() (int, bool) {
	for i, h := range t.Headers {
		if strings.EqualFold(h, "result") {
			return i, true
		}
	}
	return -1, false
}
