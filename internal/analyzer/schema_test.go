package analyzer

import (
	"strconv"
	"strings"
	"testing"

	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

func sizeTable(t *testing.T, rows ...[]string) *snapshot.Table {
	t.Helper()
	tbl := snapshot.New("schema_name", "table_name", "total_size_bytes", "indexes", "index_count")
	for _, row := range rows {
		if err := tbl.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestCheckTables_MissingPrimaryKey(t *testing.T) {
	const mb = 1048576
	tests := []struct {
		name      string
		sizeBytes int64
		indexes   string
		want      bool
	}{
		{"large without pkey", 101 * mb, "idx_events_ts", true},
		{"large with pkey", 101 * mb, "events_pkey,idx_events_ts", false},
		{"pkey any case", 101 * mb, "EVENTS_PKEY", false},
		{"exactly 100MB", 100 * mb, "", false}, // boundary is strict
		{"small without pkey", 10 * mb, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := sizeTable(t, []string{"public", "events", strconv.FormatInt(tt.sizeBytes, 10), tt.indexes, "1"})
			findings := CheckTables(tbl, Options{})
			got := hasRule(findings, RuleMissingPrimaryKey)
			if got != tt.want {
				t.Errorf("MISSING_PRIMARY_KEY fired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckTables_ExcessIndexes(t *testing.T) {
	tests := []struct {
		name  string
		count string
		want  bool
	}{
		{"six indexes", "6", true},
		{"five indexes", "5", false},
		{"missing count", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := sizeTable(t, []string{"public", "users", "1048576", "users_pkey", tt.count})
			findings := CheckTables(tbl, Options{})
			got := hasRule(findings, RuleExcessIndexes)
			if got != tt.want {
				t.Errorf("EXCESS_INDEXES fired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckTables_SizeNeverFromPrettyString(t *testing.T) {
	// A pre-formatted size string is not a byte count; the row must be
	// skipped, not misread as 16 bytes or 16 MB.
	tbl := sizeTable(t, []string{"public", "events", "16 GB", "", "1"})
	if findings := CheckTables(tbl, Options{}); len(findings) != 0 {
		t.Errorf("pretty-printed size produced findings: %+v", findings)
	}
}

func TestCheckTables_Exclusions(t *testing.T) {
	row := []string{"audit", "big_log", "209715200", "", "7"}

	if f := CheckTables(sizeTable(t, row), Options{}); len(f) != 2 {
		t.Fatalf("baseline: expected 2 findings, got %d", len(f))
	}
	if f := CheckTables(sizeTable(t, row), Options{ExcludeSchemas: []string{"audit"}}); len(f) != 0 {
		t.Errorf("excluded schema still flagged: %+v", f)
	}
	if f := CheckTables(sizeTable(t, row), Options{ExcludeTables: []string{"big_log"}}); len(f) != 0 {
		t.Errorf("excluded table still flagged: %+v", f)
	}
}

func TestCheckTables_SubjectAndOrder(t *testing.T) {
	tbl := sizeTable(t,
		[]string{"public", "first", "209715200", "", "1"},
		[]string{"public", "second", "209715200", "", "1"},
	)
	findings := CheckTables(tbl, Options{})
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Subject != "public.first" || findings[1].Subject != "public.second" {
		t.Errorf("findings out of source order: %q, %q", findings[0].Subject, findings[1].Subject)
	}
	if !strings.Contains(findings[0].Message, "200.00MB") {
		t.Errorf("message should carry the size in MB: %q", findings[0].Message)
	}
}
