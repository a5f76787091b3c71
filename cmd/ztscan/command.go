package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/inventory"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/reporting"
	"github.com/lcalzada-xor/zerotrace/internal/adapters/terminal"
	"github.com/lcalzada-xor/zerotrace/internal/app"
	"github.com/lcalzada-xor/zerotrace/internal/config"
	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/audit"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/export"
	"github.com/lcalzada-xor/zerotrace/internal/core/services/scan"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "ztscan [OPTIONS]",
		Short: "Local CVE correlation and remediation planning",
		Long: `ztscan loads CVE feeds into a local database, matches asset inventories against it
and asks a local Ollama model for remediation plans.`,
		SilenceUsage: true,
	}

	cfg         *config.Config
	application *app.Application

	genPlans   bool
	archive    bool
	outFile    string
	severity   string
	limit      int
	showResult bool
	assumeYes  bool
)

func Execute() error {
	base, err := config.Parse(nil)
	if err != nil {
		return err
	}
	cfg = base

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the CVE SQLite database")
	pf.StringVar(&cfg.AuditDBPath, "audit-db", cfg.AuditDBPath, "Path to the audit SQLite database")
	pf.StringVar(&cfg.OllamaURL, "ollama-url", cfg.OllamaURL, "Ollama base URL")
	pf.StringVar(&cfg.OllamaModel, "model", cfg.OllamaModel, "Ollama model name")
	pf.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if cfg.Debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		application = a
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	}

	loadCmd := &cobra.Command{
		Use:   "load <feed.json>...",
		Short: "Validate and store one or more CVE feed files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLoad,
	}

	scanCmd := &cobra.Command{
		Use:   "scan <assets.csv>",
		Short: "Match an asset inventory against the CVE database",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().BoolVar(&genPlans, "plans", false, "Generate action plans with Ollama")
	scanCmd.Flags().BoolVar(&archive, "archive", false, "Store the results in the scan archive")
	scanCmd.Flags().StringVarP(&outFile, "output", "o", "", "Export the report to a .csv, .json or .pdf file")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show CVE counts per severity",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored CVEs",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&severity, "severity", "", "Only show CRITICAL, HIGH, MEDIUM or LOW")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every CVE and archived scan result",
		Args:  cobra.NoArgs,
		RunE:  runClear,
	}
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous scan runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to show (0 for all)")
	historyCmd.Flags().BoolVar(&showResult, "results", false, "Show archived scan results instead of runs")

	rootCmd.AddCommand(loadCmd, scanCmd, statsCmd, listCmd, clearCmd, historyCmd)

	return rootCmd.ExecuteContext(context.Background())
}

func cliContext(cmd *cobra.Command) context.Context {
	return audit.WithActor(cmd.Context(), domain.ActorCLI, "")
}

func runLoad(cmd *cobra.Command, args []string) error {
	report, err := application.SeedLoader.LoadFromMultipleFiles(cliContext(cmd), args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range report.Errors {
		fmt.Fprintf(out, "%s %s\n", terminal.Red("✗"), e)
	}
	fmt.Fprintf(out, "%s Stored %d CVEs, %d failed\n", terminal.Green("✓"), report.Stored, report.Failed())
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	table, err := inventory.ReadCSVFile(args[0])
	if err != nil {
		return err
	}

	opts := scan.Options{GeneratePlans: genPlans, Archive: archive}
	if genPlans {
		opts.Progress = func(_ string, done, total int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rGenerating action plans... %d/%d", done, total)
			if done == total {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
		}
	}

	report, err := application.ScanService.Run(cliContext(cmd), table, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if genPlans && !report.PlansAvailable && len(report.Matches) > 0 {
		fmt.Fprintln(out, terminal.Yellow("Ollama is not reachable; action plans were replaced by placeholders."))
	}
	terminal.RenderScanReport(out, report)

	if report.Archived {
		fmt.Fprintf(out, "\n%s Archived scan %s\n", terminal.Green("✓"), report.ScanID)
	}

	if outFile != "" {
		if err := writeExport(outFile, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s Report written to %s\n", terminal.Green("✓"), outFile)
	}
	return nil
}

func writeExport(path string, report domain.ScanReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = export.ExportCSV(w, report)
	case ".json":
		err = export.ExportJSON(w, report)
	case ".pdf":
		var data []byte
		data, err = reporting.NewPDFExporter().ExportScanReport(domain.ReportMetadata{
			ID:          uuid.NewString(),
			Title:       "ZeroTrace Vulnerability Report",
			GeneratedAt: time.Now(),
			GeneratedBy: "ztscan",
		}, report)
		if err == nil {
			_, err = w.Write(data)
		}
	default:
		return fmt.Errorf("unsupported export format %q (use .csv, .json or .pdf)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := application.CVERepo.Statistics(cmd.Context())
	if err != nil {
		return err
	}
	terminal.RenderSummary(cmd.OutOrStdout(), "Database holds", stats)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	var (
		records []domain.CVERecord
		err     error
	)
	if severity != "" {
		sev := domain.Severity(strings.ToUpper(severity))
		if !sev.IsValid() {
			return fmt.Errorf("severity must be one of CRITICAL, HIGH, MEDIUM, LOW")
		}
		records, err = application.CVERepo.ListBySeverity(cmd.Context(), sev)
	} else {
		records, err = application.CVERepo.ListCVEs(cmd.Context())
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No CVEs stored.")
		return nil
	}
	terminal.RenderCVEs(cmd.OutOrStdout(), records)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !assumeYes {
		fmt.Fprint(cmd.OutOrStdout(), "This removes every CVE and archived scan result. Continue? [y/N] ")
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	ctx := cliContext(cmd)
	if err := application.CVERepo.Clear(ctx); err != nil {
		return err
	}
	if err := application.AuditService.Log(ctx, domain.ActionClear, "cves", "all records removed"); err != nil {
		slog.Warn("Failed to write audit log", "error", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Database cleared\n", terminal.Green("✓"))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if showResult {
		results, err := application.CVERepo.ListScanResults(cmd.Context(), limit)
		if err != nil {
			return err
		}
		terminal.RenderScanResults(out, results)
		return nil
	}

	runs, err := application.SystemStore.ListScanRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	terminal.RenderScanRuns(out, runs)
	return nil
}
