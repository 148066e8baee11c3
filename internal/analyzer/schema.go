package analyzer

import (
	"fmt"
	"strings"

	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

const (
	// Tables above this size without a primary key get flagged.
	largeTableMB = 100
	// More indexes than this on one table get flagged.
	maxIndexCount = 5

	bytesPerMB = 1048576
)

// CheckTables evaluates the schema rules against every row of the
// table-sizes snapshot. Size comes from the raw byte count, never from
// a pre-formatted size string. Findings keep the snapshot's row order.
func CheckTables(t *snapshot.Table, opts Options) []Finding {
	var findings []Finding
	for i := 0; i < t.Len(); i++ {
		schema := t.Str(i, "schema_name")
		table := t.Str(i, "table_name")
		if excluded(schema, opts.ExcludeSchemas) || excluded(table, opts.ExcludeTables) {
			continue
		}
		subject := schema + "." + table

		sizeBytes := t.Num(i, "total_size_bytes")
		if !opts.excludesRule(RuleMissingPrimaryKey) && sizeBytes.Valid {
			sizeMB := sizeBytes.Float64 / bytesPerMB
			indexes := strings.ToLower(t.Str(i, "indexes"))
			if sizeMB > largeTableMB && !strings.Contains(indexes, "pkey") {
				findings = append(findings, Finding{
					Rule:     RuleMissingPrimaryKey,
					Severity: SeverityHigh,
					Subject:  subject,
					Message: fmt.Sprintf("Table `%s` is large (%.2fMB) but has no primary key. "+
						"Consider adding one to improve query performance.", subject, sizeMB),
				})
			}
		}

		indexCount := t.Num(i, "index_count")
		if !opts.excludesRule(RuleExcessIndexes) && indexCount.Valid && indexCount.Float64 > maxIndexCount {
			findings = append(findings, Finding{
				Rule:     RuleExcessIndexes,
				Severity: SeverityMedium,
				Subject:  subject,
				Message: fmt.Sprintf("Table `%s` has %d indexes. "+
					"Consider consolidating or removing unused indexes to reduce write overhead.",
					subject, int(indexCount.Float64)),
			})
		}
	}
	return findings
}

func excluded(name string, list []string) bool {
	for _, x := range list {
		if strings.EqualFold(name, x) {
			return true
		}
	}
	return false
}
