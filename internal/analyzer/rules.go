package analyzer

import (
	"strings"

	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

// Query text attached to a finding is bounded for readability.
const subjectMaxLen = 200

// queryRow is the view of one query-statistics row the rules inspect.
type queryRow struct {
	query string
	upper string
	calls snapshot.Number
	avgMS snapshot.Number
}

// queryRule is one independent heuristic check against a single row.
// Matches are case-insensitive containment over the raw query text,
// not SQL parsing; false positives are expected and acceptable.
type queryRule struct {
	name     RuleName
	severity Severity
	message  string
	match    func(r queryRow) bool
}

var queryRules = []queryRule{
	{
		name:     RuleSelectStar,
		severity: SeverityLow,
		message:  "Avoid SELECT *: specify columns explicitly to reduce network traffic and improve query plan caching.",
		match: func(r queryRow) bool {
			return strings.Contains(r.upper, "SELECT *")
		},
	},
	{
		name:     RuleLeadingWildcard,
		severity: SeverityMedium,
		message:  "Leading wildcard LIKE cannot use indexes. Consider full-text search or alternative patterns.",
		match: func(r queryRow) bool {
			return strings.Contains(r.upper, `LIKE '%`) || strings.Contains(r.upper, `LIKE "%`)
		},
	},
	{
		name:     RuleMissingLimit,
		severity: SeverityLow,
		message:  "ORDER BY without LIMIT: consider adding LIMIT to avoid sorting large result sets.",
		match: func(r queryRow) bool {
			return strings.Contains(r.upper, "ORDER BY") &&
				!strings.Contains(r.upper, "LIMIT") &&
				r.calls.Valid && r.calls.Float64 > 10
		},
	},
	{
		name:     RuleImplicitJoin,
		severity: SeverityMedium,
		message:  "Implicit JOIN: use explicit JOIN syntax with an ON clause for better readability and performance.",
		match: func(r queryRow) bool {
			return strings.Contains(r.upper, "JOIN") && !strings.Contains(r.upper, "ON")
		},
	},
	{
		name:     RuleORCondition,
		severity: SeverityLow,
		message:  "OR conditions can prevent index usage. Consider rewriting with UNION ALL.",
		match: func(r queryRow) bool {
			return strings.Contains(r.upper, "OR") &&
				!strings.Contains(r.upper, "INDEX") &&
				!strings.Contains(r.upper, "UNION")
		},
	},
	{
		name:     RuleNoWhereClause,
		severity: SeverityHigh,
		message:  "Slow query with no WHERE clause: full table scans likely. Consider adding filter conditions.",
		match: func(r queryRow) bool {
			return r.avgMS.Valid && r.avgMS.Float64 > 100 &&
				!strings.Contains(r.upper, "WHERE") &&
				!strings.Contains(r.upper, "JOIN") &&
				r.calls.Valid && r.calls.Float64 > 10
		},
	},
}

// CheckQueries evaluates every query rule against every row of the
// query-statistics snapshot. A row may trigger several rules; each
// triggered rule is attached to that row's advice. Advice entries keep
// the snapshot's row order, which the collector already ranked.
func CheckQueries(t *snapshot.Table, opts Options) []QueryAdvice {
	var advice []QueryAdvice
	for i := 0; i < t.Len(); i++ {
		r := queryRow{
			query: t.Str(i, "query"),
			calls: t.Num(i, "calls"),
			avgMS: t.Num(i, "avg_ms"),
		}
		r.upper = strings.ToUpper(r.query)

		subject := truncate(r.query, subjectMaxLen)
		var findings []Finding
		for _, rule := range queryRules {
			if opts.excludesRule(rule.name) {
				continue
			}
			if rule.match(r) {
				findings = append(findings, Finding{
					Rule:     rule.name,
					Severity: rule.severity,
					Subject:  subject,
					Message:  rule.message,
				})
			}
		}

		if len(findings) > 0 {
			advice = append(advice, QueryAdvice{
				Query:    subject,
				Calls:    r.calls,
				AvgMS:    r.avgMS,
				Findings: findings,
			})
		}
	}
	return advice
}

// Flatten collects the findings of all advice entries in order.
func Flatten(advice []QueryAdvice) []Finding {
	var findings []Finding
	for _, a := range advice {
		findings = append(findings, a.Findings...)
	}
	return findings
}

// truncate bounds s to max characters, appending an ellipsis marker
// when anything was cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
