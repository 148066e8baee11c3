package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

// The collector caps query snapshots so the analysis stays bounded.
const queryStatsLimit = 100

// Collector reads PostgreSQL performance counters and materializes
// them as tabular snapshots. It never interprets the numbers; the
// analyzer does that from the persisted tables.
type Collector struct {
	pool *pgxpool.Pool
}

// NewCollector connects to PostgreSQL with retry on transient errors
// and verifies the connection.
func NewCollector(ctx context.Context, cfg Config) (*Collector, error) {
	return connectWithRetry(ctx, cfg)
}

func newCollectorOnce(ctx context.Context, cfg Config) (*Collector, error) {
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Collector{pool: pool}, nil
}

// Close releases the connection pool.
func (c *Collector) Close() {
	c.pool.Close()
}

// ServerVersion returns the PostgreSQL server version string.
func (c *Collector) ServerVersion(ctx context.Context) (string, error) {
	var version string
	err := c.pool.QueryRow(ctx, "SHOW server_version").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("server version: %w", err)
	}
	return version, nil
}

// HasStatStatements reports whether the pg_stat_statements extension
// is installed. Without it query statistics cannot be collected.
func (c *Collector) HasStatStatements(ctx context.Context) (bool, error) {
	var installed bool
	err := c.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'pg_stat_statements')").Scan(&installed)
	if err != nil {
		return false, fmt.Errorf("check pg_stat_statements: %w", err)
	}
	return installed, nil
}

// Collect gathers one snapshot table for the given metric category.
func (c *Collector) Collect(ctx context.Context, category string) (*snapshot.Table, error) {
	switch category {
	case snapshot.CategoryQueryStats:
		return c.QueryStats(ctx)
	case snapshot.CategoryDBStats:
		return c.DBStats(ctx)
	case snapshot.CategoryBgwriterStats:
		return c.BgwriterStats(ctx)
	case snapshot.CategoryConnectionInfo:
		return c.ConnectionInfo(ctx)
	case snapshot.CategoryLockInfo:
		return c.LockInfo(ctx)
	case snapshot.CategoryTableSizes:
		return c.TableSizes(ctx)
	default:
		return nil, fmt.Errorf("unknown metric category %q", category)
	}
}

// QueryStats collects per-statement statistics from pg_stat_statements,
// ranked by total execution time.
func (c *Collector) QueryStats(ctx context.Context) (*snapshot.Table, error) {
	installed, err := c.HasStatStatements(ctx)
	if err != nil {
		return nil, err
	}
	if !installed {
		return nil, fmt.Errorf("pg_stat_statements extension is not enabled")
	}

	query := `
		SELECT
			query,
			calls,
			total_exec_time,
			mean_exec_time,
			min_exec_time,
			max_exec_time
		FROM pg_stat_statements
		ORDER BY total_exec_time DESC
		LIMIT $1`

	return c.collectTable(ctx,
		[]string{"query", "calls", "total_ms", "avg_ms", "min_ms", "max_ms"},
		query, queryStatsLimit)
}

// DBStats collects cache hit ratio and size for the current database.
func (c *Collector) DBStats(ctx context.Context) (*snapshot.Table, error) {
	query := `
		SELECT
			datname,
			blks_read,
			blks_hit,
			CASE WHEN blks_read + blks_hit = 0 THEN 0
				ELSE (blks_hit * 100.0 / (blks_read + blks_hit))::float8
			END AS cache_hit_ratio,
			(pg_database_size(current_database()) / 1048576.0)::float8 AS database_size_mb
		FROM pg_stat_database
		WHERE datname = current_database()`

	return c.collectTable(ctx,
		[]string{"datname", "blks_read", "blks_hit", "cache_hit_ratio", "database_size_mb"},
		query)
}

// BgwriterStats collects background-writer counters, rendered verbatim
// in the report.
func (c *Collector) BgwriterStats(ctx context.Context) (*snapshot.Table, error) {
	query := `
		SELECT
			checkpoints_timed,
			checkpoints_req,
			buffers_checkpoint,
			buffers_clean,
			maxwritten_clean,
			buffers_alloc
		FROM pg_stat_bgwriter`

	return c.collectTable(ctx,
		[]string{"checkpoints_timed", "checkpoints_req", "buffers_checkpoint",
			"buffers_clean", "maxwritten_clean", "buffers_alloc"},
		query)
}

// ConnectionInfo collects the state of every backend except our own.
func (c *Collector) ConnectionInfo(ctx context.Context) (*snapshot.Table, error) {
	query := `
		SELECT
			COALESCE(datname, ''),
			COALESCE(usename, ''),
			COALESCE(application_name, ''),
			COALESCE(client_addr::text, ''),
			COALESCE(state, ''),
			COALESCE(query, ''),
			backend_start,
			query_start
		FROM pg_stat_activity
		WHERE pid <> pg_backend_pid()`

	return c.collectTable(ctx,
		[]string{"datname", "usename", "application_name", "client_addr",
			"state", "query", "backend_start", "query_start"},
		query)
}

// LockInfo collects held and waited-on locks with the owning query.
func (c *Collector) LockInfo(ctx context.Context) (*snapshot.Table, error) {
	query := `
		SELECT
			l.pid,
			l.mode,
			l.granted,
			COALESCE(c.relname, ''),
			COALESCE(a.query, '')
		FROM pg_locks l
		JOIN pg_stat_activity a ON l.pid = a.pid
		LEFT JOIN pg_class c ON l.relation = c.oid
		WHERE l.mode IS NOT NULL AND l.pid <> pg_backend_pid()`

	return c.collectTable(ctx,
		[]string{"pid", "mode", "granted", "relation", "query"},
		query)
}

// TableSizes collects per-table total sizes as raw byte counts plus
// the index-name list and count the schema rules inspect.
func (c *Collector) TableSizes(ctx context.Context) (*snapshot.Table, error) {
	query := `
		SELECT
			n.nspname AS schema_name,
			c.relname AS table_name,
			pg_total_relation_size(c.oid) AS total_size_bytes,
			COALESCE((
				SELECT string_agg(i.indexname, ',' ORDER BY i.indexname)
				FROM pg_indexes i
				WHERE i.schemaname = n.nspname AND i.tablename = c.relname
			), '') AS indexes,
			(
				SELECT count(*)
				FROM pg_indexes i
				WHERE i.schemaname = n.nspname AND i.tablename = c.relname
			) AS index_count
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r'
			AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY pg_total_relation_size(c.oid) DESC`

	return c.collectTable(ctx,
		[]string{"schema_name", "table_name", "total_size_bytes", "indexes", "index_count"},
		query)
}

// collectTable runs a query and materializes the result as a snapshot
// table with the given column names.
func (c *Collector) collectTable(ctx context.Context, columns []string, query string, args ...any) (*snapshot.Table, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	t := snapshot.New(columns...)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(values) != len(columns) {
			return nil, fmt.Errorf("query returned %d columns, expected %d", len(values), len(columns))
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatValue(v)
		}
		if err := t.Append(cells...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return t, nil
}

// formatValue renders a driver value as a snapshot cell. Timestamps use
// RFC 3339 so the snapshot accessors can parse them back.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", x)
	}
}
