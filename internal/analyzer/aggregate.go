package analyzer

import (
	"sort"
	"time"

	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

const (
	// DefaultTopN is the default ranking width for the query summary.
	DefaultTopN = 10

	// CacheHitThreshold is the policy boundary for the cache hit
	// ratio: at or above is good, below is flagged.
	CacheHitThreshold = 90.0

	// Query text is truncated to this length in summary tables.
	displayQueryLen = 100

	topTableCount      = 10
	topConnectionCount = 10
)

// TopQuery is one ranked row of the query summary.
type TopQuery struct {
	Query   string
	Calls   snapshot.Number
	TotalMS snapshot.Number
	AvgMS   snapshot.Number
	MinMS   snapshot.Number
	MaxMS   snapshot.Number
}

// QueryStats summarizes the query-statistics snapshot. Missing numeric
// cells are skipped from the aggregates rather than poisoning them.
type QueryStats struct {
	TotalQueries int
	TotalTimeSec float64
	MeanAvgMS    snapshot.Number
	MaxMS        snapshot.Number
	Top          []TopQuery
}

// AggregateQueries computes totals, means, maxima, and the top-N rows
// by descending total execution time. The selection is a stable sort,
// so ties keep the snapshot's order. topN <= 0 falls back to the
// default.
func AggregateQueries(t *snapshot.Table, topN int) QueryStats {
	if topN <= 0 {
		topN = DefaultTopN
	}

	stats := QueryStats{TotalQueries: t.Len()}

	var avgSum float64
	var avgCount int
	for i := 0; i < t.Len(); i++ {
		if n := t.Num(i, "total_ms"); n.Valid {
			stats.TotalTimeSec += n.Float64 / 1000
		}
		if n := t.Num(i, "avg_ms"); n.Valid {
			avgSum += n.Float64
			avgCount++
		}
		if n := t.Num(i, "max_ms"); n.Valid {
			if !stats.MaxMS.Valid || n.Float64 > stats.MaxMS.Float64 {
				stats.MaxMS = n
			}
		}
	}
	if avgCount > 0 {
		stats.MeanAvgMS = snapshot.Number{Float64: avgSum / float64(avgCount), Valid: true}
	}

	ranked := make([]TopQuery, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		ranked = append(ranked, TopQuery{
			Query:   truncate(t.Str(i, "query"), displayQueryLen),
			Calls:   t.Num(i, "calls"),
			TotalMS: t.Num(i, "total_ms"),
			AvgMS:   t.Num(i, "avg_ms"),
			MinMS:   t.Num(i, "min_ms"),
			MaxMS:   t.Num(i, "max_ms"),
		})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		na, nb := ranked[a].TotalMS, ranked[b].TotalMS
		if na.Valid != nb.Valid {
			return na.Valid // rows with a known total rank above unknowns
		}
		return na.Float64 > nb.Float64
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	stats.Top = ranked

	return stats
}

// TableSize is one ranked row of the table-size summary.
type TableSize struct {
	Schema string
	Table  string
	SizeMB float64
}

// AggregateTableSizes ranks tables by size descending and keeps the
// top ten. Ranking always uses the raw byte count divided by 1048576,
// never a pre-formatted size string.
func AggregateTableSizes(t *snapshot.Table) []TableSize {
	var sizes []TableSize
	for i := 0; i < t.Len(); i++ {
		bytes := t.Num(i, "total_size_bytes")
		if !bytes.Valid {
			continue
		}
		sizes = append(sizes, TableSize{
			Schema: t.Str(i, "schema_name"),
			Table:  t.Str(i, "table_name"),
			SizeMB: bytes.Float64 / bytesPerMB,
		})
	}
	sort.SliceStable(sizes, func(a, b int) bool {
		return sizes[a].SizeMB > sizes[b].SizeMB
	})
	if len(sizes) > topTableCount {
		sizes = sizes[:topTableCount]
	}
	return sizes
}

// ResourceStats carries the database-level stats of one report run.
type ResourceStats struct {
	CacheHitRatio  snapshot.Number
	DatabaseSizeMB snapshot.Number
}

// GoodCacheHit reports whether the ratio meets the policy threshold.
// The boundary is inclusive: exactly 90% is good.
func (r ResourceStats) GoodCacheHit() bool {
	return r.CacheHitRatio.Valid && r.CacheHitRatio.Float64 >= CacheHitThreshold
}

// AggregateDBStats reads the pre-computed database stats from the
// first snapshot row.
func AggregateDBStats(t *snapshot.Table) ResourceStats {
	if t.Len() == 0 {
		return ResourceStats{}
	}
	return ResourceStats{
		CacheHitRatio:  t.Num(0, "cache_hit_ratio"),
		DatabaseSizeMB: t.Num(0, "database_size_mb"),
	}
}

// ConnRow is one connection listed in the summary.
type ConnRow struct {
	Database    string
	User        string
	Application string
	State       string
	QueryStart  string
	Query       string
}

// ConnectionSummary partitions connections by state and lists the
// longest-running active ones.
type ConnectionSummary struct {
	Active            int
	Idle              int
	IdleInTransaction int
	OldestActive      []ConnRow
}

// AggregateConnections counts connections per state and selects the
// ten active connections with the earliest query start. Rows without a
// parseable start time sort last.
func AggregateConnections(t *snapshot.Table) ConnectionSummary {
	var summary ConnectionSummary

	type activeConn struct {
		row      ConnRow
		start    time.Time
		hasStart bool
	}
	var active []activeConn

	for i := 0; i < t.Len(); i++ {
		switch t.Str(i, "state") {
		case "active":
			summary.Active++
			start, ok := t.Time(i, "query_start")
			active = append(active, activeConn{
				row: ConnRow{
					Database:    t.Str(i, "datname"),
					User:        t.Str(i, "usename"),
					Application: t.Str(i, "application_name"),
					State:       t.Str(i, "state"),
					QueryStart:  t.Str(i, "query_start"),
					Query:       truncate(t.Str(i, "query"), displayQueryLen),
				},
				start:    start,
				hasStart: ok,
			})
		case "idle":
			summary.Idle++
		case "idle in transaction":
			summary.IdleInTransaction++
		}
	}

	sort.SliceStable(active, func(a, b int) bool {
		if active[a].hasStart != active[b].hasStart {
			return active[a].hasStart
		}
		return active[a].start.Before(active[b].start)
	})
	if len(active) > topConnectionCount {
		active = active[:topConnectionCount]
	}
	for _, c := range active {
		summary.OldestActive = append(summary.OldestActive, c.row)
	}

	return summary
}

// LockSummary partitions locks by grant status. WaitingLocks holds the
// full waiting listing, unbounded.
type LockSummary struct {
	Total        int
	Granted      int
	Waiting      int
	WaitingLocks *snapshot.Table
}

// AggregateLocks counts granted versus waiting locks. Rows with an
// unreadable grant flag count toward the total but neither partition.
func AggregateLocks(t *snapshot.Table) LockSummary {
	summary := LockSummary{
		Total:        t.Len(),
		WaitingLocks: snapshot.New(t.Columns...),
	}
	for i := 0; i < t.Len(); i++ {
		granted, ok := t.Bool(i, "granted")
		if !ok {
			continue
		}
		if granted {
			summary.Granted++
		} else {
			summary.Waiting++
			_ = summary.WaitingLocks.Append(t.Rows[i]...)
		}
	}
	return summary
}
