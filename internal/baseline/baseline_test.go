package baseline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ramazansakin/pg-profiler/internal/analyzer"
)

func TestFingerprint_Stable(t *testing.T) {
	f := analyzer.Finding{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM users"}
	fp1 := Fingerprint(&f)
	fp2 := Fingerprint(&f)
	if fp1 != fp2 {
		t.Errorf("fingerprint not stable: %q != %q", fp1, fp2)
	}
}

func TestFingerprint_Distinct(t *testing.T) {
	f1 := analyzer.Finding{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM users"}
	f2 := analyzer.Finding{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM orders"}
	f3 := analyzer.Finding{Rule: analyzer.RuleMissingLimit, Subject: "SELECT * FROM users"}
	if Fingerprint(&f1) == Fingerprint(&f2) {
		t.Error("different subjects should have different fingerprints")
	}
	if Fingerprint(&f1) == Fingerprint(&f3) {
		t.Error("different rules should have different fingerprints")
	}
}

func TestLoad_NoFile(t *testing.T) {
	b, err := Load("/nonexistent/path.json")
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Fingerprints) != 0 {
		t.Errorf("expected empty baseline, got %d fingerprints", len(b.Fingerprints))
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")

	findings := []analyzer.Finding{
		{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM users"},
		{Rule: analyzer.RuleMissingPrimaryKey, Subject: "public.events"},
	}

	if err := Save(path, findings); err != nil {
		t.Fatal(err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Fingerprints) != 2 {
		t.Errorf("expected 2 fingerprints, got %d", len(b.Fingerprints))
	}
	if !b.Contains(&findings[0]) || !b.Contains(&findings[1]) {
		t.Error("baseline should contain saved findings")
	}

	newFinding := analyzer.Finding{Rule: analyzer.RuleExcessIndexes, Subject: "public.users"}
	if b.Contains(&newFinding) {
		t.Error("baseline should not contain new finding")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestSave_Deduplicate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")

	findings := []analyzer.Finding{
		{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM users"},
		{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM users"}, // duplicate
	}

	if err := Save(path, findings); err != nil {
		t.Fatal(err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Fingerprints) != 1 {
		t.Errorf("expected 1 unique fingerprint, got %d", len(b.Fingerprints))
	}
}

func TestFilter(t *testing.T) {
	findings := []analyzer.Finding{
		{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM users"},
		{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM orders"},
		{Rule: analyzer.RuleMissingPrimaryKey, Subject: "public.events"},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.json")
	if err := Save(path, findings[:1]); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	filtered, suppressed := b.Filter(findings)
	if suppressed != 1 {
		t.Errorf("expected 1 suppressed, got %d", suppressed)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 remaining findings, got %d", len(filtered))
	}
}

func TestFilter_NilBaseline(t *testing.T) {
	var b *Baseline
	findings := []analyzer.Finding{
		{Rule: analyzer.RuleSelectStar, Subject: "SELECT * FROM users"},
	}

	filtered, suppressed := b.Filter(findings)
	if suppressed != 0 || len(filtered) != 1 {
		t.Errorf("nil baseline should pass findings through, got %d/%d", len(filtered), suppressed)
	}
}
