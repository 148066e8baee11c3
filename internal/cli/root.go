package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ramazansakin/pg-profiler/internal/analyzer"
	"github.com/ramazansakin/pg-profiler/internal/baseline"
	"github.com/ramazansakin/pg-profiler/internal/config"
	"github.com/ramazansakin/pg-profiler/internal/logging"
	"github.com/ramazansakin/pg-profiler/internal/postgres"
	"github.com/ramazansakin/pg-profiler/internal/report"
	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

var (
	dbURL     string
	rawDir    string
	reportDir string
	verbose   bool
	cfg       config.Config
)

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:          "pgprofiler",
		Short:        "PostgreSQL performance profiler and baseline analyzer",
		Long:         "Snapshots PostgreSQL performance counters to CSV files and turns the latest snapshots into a markdown diagnostic report with rule-based optimization suggestions.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(verbose, cmd.ErrOrStderr())

			cwd, err := os.Getwd()
			if err != nil {
				cwd = "."
			}
			cfg, err = config.Load(cwd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			slog.Debug("config loaded", "path", cwd)

			// Apply flag/env overrides before validating
			if dbURL == "" {
				if envURL := os.Getenv("PGPROFILER_DB_URL"); envURL != "" {
					dbURL = envURL
				} else if cfg.DBURL != "" {
					dbURL = cfg.DBURL
				}
			}
			if rawDir != "" {
				cfg.Collection.RawDir = rawDir
			}
			if reportDir != "" {
				cfg.Collection.ReportDir = reportDir
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection URL (or set PGPROFILER_DB_URL)")
	root.PersistentFlags().StringVar(&rawDir, "raw-dir", "", "snapshot directory (overrides config)")
	root.PersistentFlags().StringVar(&reportDir, "report-dir", "", "report output directory (overrides config)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newCollectCmd())
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newRunCmd())

	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pgprofiler "+version)
		},
	}
}

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Snapshot performance counters from PostgreSQL to CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context())
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var (
		topN           int
		baselinePath   string
		updateBaseline string
		failOn         string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate a diagnostic report from the latest snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("top-n") {
				topN = cfg.Analysis.TopNQueries
			}
			return runAnalyze(cmd, topN, baselinePath, updateBaseline, failOn)
		},
	}

	cmd.Flags().IntVar(&topN, "top-n", analyzer.DefaultTopN, "ranking width for the query summary")
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "path to baseline file (suppress known findings)")
	cmd.Flags().StringVar(&updateBaseline, "update-baseline", "", "save current findings as new baseline")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "exit 2 if findings match (comma-separated rules or severity: high,medium)")

	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		topN           int
		baselinePath   string
		updateBaseline string
		failOn         string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect fresh snapshots, then generate the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			// A report from the existing snapshots is still useful
			// when collection fails, so the failure is not fatal.
			if err := runCollect(cmd.Context()); err != nil {
				slog.Warn("collection failed, analyzing existing snapshots", "error", err)
			}
			if !cmd.Flags().Changed("top-n") {
				topN = cfg.Analysis.TopNQueries
			}
			return runAnalyze(cmd, topN, baselinePath, updateBaseline, failOn)
		},
	}

	cmd.Flags().IntVar(&topN, "top-n", analyzer.DefaultTopN, "ranking width for the query summary")
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "path to baseline file (suppress known findings)")
	cmd.Flags().StringVar(&updateBaseline, "update-baseline", "", "save current findings as new baseline")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "exit 2 if findings match (comma-separated rules or severity: high,medium)")

	return cmd
}

func runCollect(ctx context.Context) error {
	if dbURL == "" {
		return fmt.Errorf("--db-url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.TimeoutDuration())
	defer cancel()

	collector, err := postgres.NewCollector(ctx, postgres.Config{URL: dbURL})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer collector.Close()

	ver, err := collector.ServerVersion(ctx)
	if err != nil {
		return fmt.Errorf("server version: %w", err)
	}
	slog.Info("connected", "version", ver)

	store := snapshot.NewStore(cfg.Collection.RawDir)
	now := time.Now()

	// One bad category must not block the others; the report degrades
	// that section on its own.
	for _, category := range cfg.Collection.Metrics {
		t, err := collector.Collect(ctx, category)
		if err != nil {
			slog.Warn("collect failed", "category", category, "error", err)
			continue
		}
		path, err := store.Write(category, now, t)
		if err != nil {
			return fmt.Errorf("save %s snapshot: %w", category, err)
		}
		slog.Info("snapshot saved", "category", category, "rows", t.Len(), "path", path)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, topN int, baselinePath, updateBaseline, failOn string) error {
	store := snapshot.NewStore(cfg.Collection.RawDir)
	opts := analyzer.Options{
		ExcludeSchemas: cfg.Exclude.Schemas,
		ExcludeTables:  cfg.Exclude.Tables,
		ExcludeRules:   cfg.Exclude.Rules,
	}

	renderer := report.NewRenderer(store, topN, opts)
	var bl *baseline.Baseline
	if baselinePath != "" {
		var err error
		bl, err = baseline.Load(baselinePath)
		if err != nil {
			return fmt.Errorf("load baseline: %w", err)
		}
		renderer.WithBaseline(bl)
	}

	path, err := renderer.WriteReport(cfg.Collection.ReportDir, time.Now())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if updateBaseline != "" {
		if err := baseline.Save(updateBaseline, renderer.Findings()); err != nil {
			return fmt.Errorf("save baseline: %w", err)
		}
		slog.Info("baseline saved", "path", updateBaseline, "findings", len(renderer.Findings()))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Report generated: %s\n", path)

	if failOn != "" {
		// Baseline-suppressed findings do not fail the run.
		findings, _ := bl.Filter(renderer.Findings())
		if shouldFailOn(findings, failOn) {
			slog.Warn("findings matched fail-on criteria",
				"fail_on", failOn,
				"max_severity", analyzer.MaxSeverity(findings))
			os.Exit(2)
		}
	}
	return nil
}

// shouldFailOn reports whether any finding matches the comma-separated
// fail-on criteria. Entries naming a severity level match by severity;
// everything else matches by rule name, case-insensitively.
func shouldFailOn(findings []analyzer.Finding, failOn string) bool {
	rules := make(map[string]bool)
	severities := make(map[string]bool)

	for _, p := range strings.Split(failOn, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lower := strings.ToLower(p)
		switch lower {
		case "high", "medium", "low", "info":
			severities[lower] = true
		default:
			rules[strings.ToUpper(p)] = true
		}
	}

	for _, f := range findings {
		if rules[string(f.Rule)] {
			return true
		}
		if severities[string(f.Severity)] {
			return true
		}
	}
	return false
}

// Execute runs the root command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}
