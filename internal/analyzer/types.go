package analyzer

import "github.com/ramazansakin/pg-profiler/internal/snapshot"

// Severity indicates the risk level of a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// RuleName identifies which rule produced a finding.
type RuleName string

const (
	RuleSelectStar        RuleName = "SELECT_STAR"
	RuleLeadingWildcard   RuleName = "LEADING_WILDCARD"
	RuleMissingLimit      RuleName = "MISSING_LIMIT"
	RuleImplicitJoin      RuleName = "IMPLICIT_JOIN"
	RuleORCondition       RuleName = "OR_CONDITION"
	RuleNoWhereClause     RuleName = "NO_WHERE_CLAUSE"
	RuleMissingPrimaryKey RuleName = "MISSING_PRIMARY_KEY"
	RuleExcessIndexes     RuleName = "EXCESS_INDEXES"
)

// Finding is a single rule-triggered advisory tied to one query row or
// one table.
type Finding struct {
	Rule     RuleName `json:"rule"`
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject"` // truncated query text or schema.table
	Message  string   `json:"message"`
}

// QueryAdvice groups every finding triggered by one query-statistics
// row, keeping the row's call count and mean latency for display.
type QueryAdvice struct {
	Query    string
	Calls    snapshot.Number
	AvgMS    snapshot.Number
	Findings []Finding
}

// Options controls schema-rule exclusions. Empty slices mean no
// filtering.
type Options struct {
	ExcludeSchemas []string
	ExcludeTables  []string
	ExcludeRules   []string
}

// excludesRule reports whether the named rule is disabled.
func (o *Options) excludesRule(name RuleName) bool {
	for _, r := range o.ExcludeRules {
		if RuleName(r) == name {
			return true
		}
	}
	return false
}

var severityOrder = map[Severity]int{
	SeverityInfo:   0,
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// MaxSeverity returns the highest severity among findings.
func MaxSeverity(findings []Finding) Severity {
	max := SeverityInfo
	for _, f := range findings {
		if severityOrder[f.Severity] > severityOrder[max] {
			max = f.Severity
		}
	}
	return max
}
