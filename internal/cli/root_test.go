package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd("1.2.3")
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "pgprofiler 1.2.3\n" {
		t.Errorf("output = %q", got)
	}
}

func TestCollectCmd_MissingDBURL(t *testing.T) {
	t.Setenv("PGPROFILER_DB_URL", "")

	cmd := newRootCmd("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"collect"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error without --db-url")
	}
	if !strings.Contains(err.Error(), "--db-url is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnalyzeCmd_GeneratesReport(t *testing.T) {
	rawDir := t.TempDir()
	reportDir := t.TempDir()

	writeFixture(t, rawDir, "query_stats_20240501_103000.csv",
		"query,calls,total_ms,avg_ms,min_ms,max_ms\n"+
			"SELECT * FROM users,20,400,20,1,50\n")
	writeFixture(t, rawDir, "db_stats_20240501_103000.csv",
		"cache_hit_ratio,database_size_mb\n95.5,512\n")

	var out bytes.Buffer
	cmd := newRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze", "--raw-dir", rawDir, "--report-dir", reportDir})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "Report generated: ") {
		t.Fatalf("missing confirmation, got %q", out.String())
	}

	matches, err := filepath.Glob(filepath.Join(reportDir, "performance_report_*.md"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one report file, got %v (%v)", matches, err)
	}

	body, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	report := string(body)
	if !strings.Contains(report, "# PostgreSQL Performance Analysis Report") {
		t.Error("missing report title")
	}
	if !strings.Contains(report, "Avoid SELECT *") {
		t.Error("expected SELECT * suggestion in report")
	}
	if !strings.Contains(report, "95.50%") {
		t.Error("expected cache hit ratio in report")
	}
}

func TestAnalyzeCmd_UpdateBaselineThenSuppress(t *testing.T) {
	rawDir := t.TempDir()
	reportDir := t.TempDir()
	baselinePath := filepath.Join(t.TempDir(), "baseline.json")

	writeFixture(t, rawDir, "query_stats_20240501_103000.csv",
		"query,calls,total_ms,avg_ms,min_ms,max_ms\n"+
			"SELECT * FROM users,20,400,20,1,50\n")

	cmd := newRootCmd("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze", "--raw-dir", rawDir, "--report-dir", reportDir,
		"--update-baseline", baselinePath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("update baseline run: %v", err)
	}
	if _, err := os.Stat(baselinePath); err != nil {
		t.Fatalf("baseline file not written: %v", err)
	}

	// Second run with the baseline suppresses the known finding.
	cmd = newRootCmd("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze", "--raw-dir", rawDir, "--report-dir", reportDir,
		"--baseline", baselinePath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("baseline run: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(reportDir, "performance_report_*.md"))
	if len(matches) == 0 {
		t.Fatal("no report written")
	}
	body, err := os.ReadFile(matches[len(matches)-1])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "suppressed by baseline") {
		t.Error("expected baseline suppression note in report")
	}
}
