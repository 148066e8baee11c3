package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStore_Latest_PicksNewest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "query_stats_20240101_000000.csv", "query,calls\nold,1\n")
	writeFile(t, dir, "query_stats_20240301_120000.csv", "query,calls\nnewest,3\n")
	writeFile(t, dir, "query_stats_20240201_000000.csv", "query,calls\nmiddle,2\n")

	tbl, err := NewStore(dir).Latest(CategoryQueryStats)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Str(0, "query"); got != "newest" {
		t.Errorf("Latest loaded %q, want newest", got)
	}
}

func TestStore_Latest_CategoryIsolation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lock_info_20240101_000000.csv", "pid,granted\n1,true\n")

	if _, err := NewStore(dir).Latest(CategoryQueryStats); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
	if _, err := NewStore(dir).Latest(CategoryLockInfo); err != nil {
		t.Errorf("lock_info should load, got %v", err)
	}
}

func TestStore_Latest_NoData(t *testing.T) {
	if _, err := NewStore(t.TempDir()).Latest(CategoryDBStats); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestStore_Latest_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "db_stats_20240101_000000.csv", "a,b\n1,2,3,4\n")

	_, err := NewStore(dir).Latest(CategoryDBStats)
	if err == nil || errors.Is(err, ErrNoData) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !strings.Contains(err.Error(), "db_stats_20240101_000000.csv") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestStore_Write_CreatesDirAndRoundTrips(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "raw")
	store := NewStore(dir)

	tbl := New("schema_name", "table_name", "total_size_bytes")
	_ = tbl.Append("public", "users", "52428800")

	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	path, err := store.Write(CategoryTableSizes, ts, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "table_sizes_20240501_103000.csv" {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}

	got, err := store.Latest(CategoryTableSizes)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 || got.Str(0, "table_name") != "users" {
		t.Errorf("round trip lost data: %+v", got.Rows)
	}
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("query,calls\n"))
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 0 {
		t.Errorf("Len = %d, want 0", tbl.Len())
	}
	if !tbl.HasColumn("calls") {
		t.Error("header columns lost")
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestReadCSV_QuotedCells(t *testing.T) {
	in := "query,calls\n\"SELECT a, b FROM t\",10\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Str(0, "query"); got != "SELECT a, b FROM t" {
		t.Errorf("quoted cell = %q", got)
	}
}
