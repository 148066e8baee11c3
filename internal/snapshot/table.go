package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metric category names shared by the collector and the report renderer.
// Snapshot files on disk are named "<category>_<timestamp>.csv".
const (
	CategoryQueryStats     = "query_stats"
	CategoryDBStats        = "db_stats"
	CategoryBgwriterStats  = "bgwriter_stats"
	CategoryConnectionInfo = "connection_info"
	CategoryLockInfo       = "lock_info"
	CategoryTableSizes     = "table_sizes"
)

// Categories lists every metric category in collection order.
var Categories = []string{
	CategoryQueryStats,
	CategoryDBStats,
	CategoryBgwriterStats,
	CategoryConnectionInfo,
	CategoryLockInfo,
	CategoryTableSizes,
}

// Number is a numeric cell value. Valid is false when the source cell
// was empty or not parseable as a number.
type Number struct {
	Float64 float64
	Valid   bool
}

// ParseNumber parses a cell permissively. Invalid input yields an
// invalid Number, never an error.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}
	}
	return Number{Float64: f, Valid: true}
}

// Table is one captured tabular reading of a metric category: an ordered
// set of named columns with zero or more rows. Cells are stored as the
// raw strings read from the snapshot file; typed access is permissive.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty table with the given column order.
func New(columns ...string) *Table {
	t := &Table{Columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		t.index[c] = i
	}
	return t
}

// Append adds one row. The row must have exactly one cell per column.
func (t *Table) Append(row ...string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Str returns the raw cell value, or "" when the column is absent.
func (t *Table) Str(row int, col string) string {
	i, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// Num returns the cell parsed as a number. Missing columns and
// unparseable cells yield an invalid Number.
func (t *Table) Num(row int, col string) Number {
	return ParseNumber(t.Str(row, col))
}

// Bool returns the cell parsed as a boolean. The second result is false
// when the cell is empty or not recognizable as a boolean.
func (t *Table) Bool(row int, col string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(t.Str(row, col))) {
	case "true", "t", "1", "yes":
		return true, true
	case "false", "f", "0", "no":
		return false, true
	default:
		return false, false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Time returns the cell parsed as a timestamp. The second result is
// false when the cell does not match any known layout.
func (t *Table) Time(row int, col string) (time.Time, bool) {
	s := strings.TrimSpace(t.Str(row, col))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
