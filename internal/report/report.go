package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ramazansakin/pg-profiler/internal/analyzer"
	"github.com/ramazansakin/pg-profiler/internal/baseline"
	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

// The renderer limits recommendation listings the way the collector
// limits snapshots: enough to act on, not a dump.
const (
	maxQuerySuggestions = 10
	maxTableSuggestions = 5
)

// Renderer assembles the latest snapshots into one markdown report.
// Section order and numbering are fixed regardless of which snapshot
// categories are present, so reports stay diffable across runs.
type Renderer struct {
	store    *snapshot.Store
	topN     int
	opts     analyzer.Options
	baseline *baseline.Baseline

	findings   []analyzer.Finding // everything the rules produced, pre-suppression
	suppressed int
}

// NewRenderer builds a renderer over the given snapshot store.
// topN <= 0 uses the default ranking width.
func NewRenderer(store *snapshot.Store, topN int, opts analyzer.Options) *Renderer {
	if topN <= 0 {
		topN = analyzer.DefaultTopN
	}
	return &Renderer{store: store, topN: topN, opts: opts}
}

// WithBaseline suppresses previously recorded findings in the
// recommendation sections.
func (r *Renderer) WithBaseline(b *baseline.Baseline) *Renderer {
	r.baseline = b
	return r
}

// Findings returns every finding produced during the last Render,
// before baseline suppression. Used to update a baseline.
func (r *Renderer) Findings() []analyzer.Finding {
	return r.findings
}

// WriteReport renders the report and writes it to a uniquely named
// file under dir. The directory is created first, so the artifact is
// only opened once the location is known writable; the document is
// fully assembled in memory before anything touches disk.
func (r *Renderer) WriteReport(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, now); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("performance_report_%s.md", now.Format(snapshot.TimestampLayout)))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Render writes the full report document. Every section is guarded
// independently: an absent or malformed snapshot degrades that section
// to a notice and the rest of the report still renders.
func (r *Renderer) Render(w io.Writer, now time.Time) error {
	r.findings = nil
	r.suppressed = 0

	p := &printer{w: w}
	p.printf("# PostgreSQL Performance Analysis Report - %s\n\n", now.Format(snapshot.TimestampLayout))
	p.printf("This report provides performance metrics and optimization suggestions for your PostgreSQL database.\n\n")

	sections := []struct {
		title  string
		render func(*printer)
	}{
		{"Query Performance Analysis", r.querySection},
		{"Optimization Recommendations", r.recommendationSection},
		{"Table Analysis", r.tableSection},
		{"Resource Usage Analysis", r.resourceSection},
		{"Connection Information", r.connectionSection},
		{"Lock Information", r.lockSection},
		{"Table and Index Sizes", r.sizeSection},
	}
	for i, s := range sections {
		p.printf("## %d. %s\n\n", i+1, s.title)
		s.render(p)
	}

	if r.suppressed > 0 {
		p.printf("%d previously reported finding(s) suppressed by baseline.\n\n", r.suppressed)
	}
	p.printf("---\n*End of Report*\n")
	return p.err
}

// load fetches the latest snapshot for a category, rendering the
// absent/malformed notices in place. The second result is false when
// the section has nothing further to do.
func (r *Renderer) load(p *printer, category, label string) (*snapshot.Table, bool) {
	t, err := r.store.Latest(category)
	if errors.Is(err, snapshot.ErrNoData) {
		p.printf("No %s found.\n\n", label)
		return nil, false
	}
	if err != nil {
		p.printf("Error processing %s: %v\n\n", label, err)
		return nil, false
	}
	if t.Len() == 0 {
		p.printf("No %s found.\n\n", label)
		return nil, false
	}
	return t, true
}

func (r *Renderer) querySection(p *printer) {
	t, ok := r.load(p, snapshot.CategoryQueryStats, "query statistics data")
	if !ok {
		return
	}

	stats := analyzer.AggregateQueries(t, r.topN)

	p.printf("### Top %d Queries by Total Execution Time\n\n", r.topN)
	rows := make([][]string, 0, len(stats.Top))
	for _, q := range stats.Top {
		rows = append(rows, []string{
			fmt.Sprintf("`%s`", q.Query),
			num0(q.Calls), num2(q.TotalMS), num2(q.AvgMS), num2(q.MinMS), num2(q.MaxMS),
		})
	}
	p.writeTable([]string{"query", "calls", "total_ms", "avg_ms", "min_ms", "max_ms"}, rows)
	p.printf("\n")

	p.printf("### Query Performance Summary\n\n")
	p.printf("- Total queries collected: %d\n", stats.TotalQueries)
	p.printf("- Total execution time: %.2f seconds\n", stats.TotalTimeSec)
	p.printf("- Average query time: %s ms\n", num2(stats.MeanAvgMS))
	p.printf("- Slowest query: %s ms\n\n", num2(stats.MaxMS))
}

func (r *Renderer) recommendationSection(p *printer) {
	t, ok := r.load(p, snapshot.CategoryQueryStats, "query statistics data")
	if !ok {
		return
	}

	advice := analyzer.CheckQueries(t, r.opts)
	r.findings = append(r.findings, analyzer.Flatten(advice)...)
	advice = r.filterAdvice(advice)

	if len(advice) == 0 {
		p.printf("No obvious query optimization opportunities detected.\n\n")
		return
	}

	p.printf("### Query Optimization Opportunities\n\n")
	p.printf("The following queries might benefit from optimization:\n\n")
	if len(advice) > maxQuerySuggestions {
		advice = advice[:maxQuerySuggestions]
	}
	for i, a := range advice {
		p.printf("%d. **Query**: `%s`\n", i+1, a.Query)
		p.printf("   - **Calls**: %s | **Avg Time**: %s ms\n", num0(a.Calls), num2(a.AvgMS))
		for _, f := range a.Findings {
			p.printf("   - %s\n", f.Message)
		}
		p.printf("\n")
	}
}

func (r *Renderer) tableSection(p *printer) {
	t, ok := r.load(p, snapshot.CategoryTableSizes, "table size data")
	if !ok {
		return
	}

	p.printf("### Largest Tables\n\n")
	sizes := analyzer.AggregateTableSizes(t)
	rows := make([][]string, 0, len(sizes))
	for _, s := range sizes {
		rows = append(rows, []string{s.Schema, s.Table, fmt.Sprintf("%.2f", s.SizeMB)})
	}
	p.writeTable([]string{"Schema", "Table", "Size (MB)"}, rows)
	p.printf("\n")

	findings := analyzer.CheckTables(t, r.opts)
	r.findings = append(r.findings, findings...)
	findings, n := r.baseline.Filter(findings)
	r.suppressed += n

	if len(findings) == 0 {
		return
	}
	p.printf("### Table Optimization Opportunities\n\n")
	if len(findings) > maxTableSuggestions {
		findings = findings[:maxTableSuggestions]
	}
	for _, f := range findings {
		p.printf("- %s\n", f.Message)
	}
	p.printf("\n")
}

func (r *Renderer) resourceSection(p *printer) {
	if t, ok := r.load(p, snapshot.CategoryDBStats, "database statistics data"); ok {
		stats := analyzer.AggregateDBStats(t)
		p.printf("### Database Statistics\n\n")
		if stats.CacheHitRatio.Valid {
			p.printf("- **Cache Hit Ratio**: %.2f%%\n", stats.CacheHitRatio.Float64)
			if stats.GoodCacheHit() {
				p.printf("  - Good cache hit ratio.\n")
			} else {
				p.printf("  - **Low cache hit ratio**. Consider increasing shared_buffers if you have available RAM.\n")
			}
		}
		if stats.DatabaseSizeMB.Valid {
			p.printf("- **Database Size**: %.2f MB\n", stats.DatabaseSizeMB.Float64)
		}
		p.printf("\n")
	}

	if t, ok := r.load(p, snapshot.CategoryBgwriterStats, "background writer statistics data"); ok {
		p.printf("### Background Writer Statistics\n\n")
		p.writeTable(t.Columns, t.Rows)
		p.printf("\n")
	}
}

func (r *Renderer) connectionSection(p *printer) {
	t, ok := r.load(p, snapshot.CategoryConnectionInfo, "connection information")
	if !ok {
		return
	}

	summary := analyzer.AggregateConnections(t)
	p.printf("Total active connections: %d\n", summary.Active)
	p.printf("Total idle connections: %d\n", summary.Idle)
	p.printf("Total idle in transaction connections: %d\n\n", summary.IdleInTransaction)

	if len(summary.OldestActive) == 0 {
		return
	}
	p.printf("Top 10 Active Connections (by query start time):\n\n")
	rows := make([][]string, 0, len(summary.OldestActive))
	for _, c := range summary.OldestActive {
		rows = append(rows, []string{c.Database, c.User, c.Application, c.State, c.QueryStart, fmt.Sprintf("`%s`", c.Query)})
	}
	p.writeTable([]string{"datname", "usename", "application_name", "state", "query_start", "query"}, rows)
	p.printf("\n")
}

func (r *Renderer) lockSection(p *printer) {
	t, ok := r.load(p, snapshot.CategoryLockInfo, "lock information")
	if !ok {
		return
	}

	summary := analyzer.AggregateLocks(t)
	p.printf("Total active locks: %d\n", summary.Total)
	p.printf("Total granted locks: %d\n", summary.Granted)
	p.printf("Total waiting locks: %d\n\n", summary.Waiting)

	if summary.Waiting == 0 {
		p.printf("No waiting locks identified.\n\n")
		return
	}
	p.printf("Waiting Locks:\n\n")
	p.writeTable(summary.WaitingLocks.Columns, summary.WaitingLocks.Rows)
	p.printf("\n")
}

func (r *Renderer) sizeSection(p *printer) {
	t, ok := r.load(p, snapshot.CategoryTableSizes, "table size information")
	if !ok {
		return
	}

	p.printf("Largest Tables by Total Size:\n\n")
	rows := t.Rows
	if len(rows) > 10 {
		rows = rows[:10]
	}
	p.writeTable(t.Columns, rows)
	p.printf("\n")
}

// filterAdvice drops baseline-suppressed findings, and advice entries
// left with none.
func (r *Renderer) filterAdvice(advice []analyzer.QueryAdvice) []analyzer.QueryAdvice {
	if r.baseline == nil {
		return advice
	}
	var out []analyzer.QueryAdvice
	for _, a := range advice {
		kept, n := r.baseline.Filter(a.Findings)
		r.suppressed += n
		if len(kept) > 0 {
			a.Findings = kept
			out = append(out, a)
		}
	}
	return out
}

func num2(n snapshot.Number) string {
	if !n.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", n.Float64)
}

func num0(n snapshot.Number) string {
	if !n.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.0f", n.Float64)
}
