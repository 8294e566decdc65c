package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"spo-preflight/internal/config"
	"spo-preflight/internal/logger"
	"spo-preflight/internal/runner"
)

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a directory tree for migration issues",
		Long: `Scan walks the directory tree at <path> and writes every SharePoint Online
migration issue it finds to a CSV report.

Configuration is loaded from --config if given. CLI flags override
configuration file settings.

Exit codes:
  0   no issues found
  10  issues found
  1   issues found with --fail-on-issues, or the path does not exist
  2   the path is not a directory
  3   the report could not be written
  4   invalid configuration

Examples:
  # Scan a UNC path
  preflight scan '\\server\share\folder'

  # Custom output paths
  preflight scan /data --report reports/issues.csv --log reports/scan.log

  # Project URL lengths against a SharePoint library
  preflight scan /data --spo-url https://contoso.sharepoint.com/sites/Finance --spo-library "Shared Documents"

  # Anonymized report with a JSON summary
  preflight scan /data --anonymize --summary-json summary.json`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	defaults := config.DefaultConfig()
	flags := cmd.Flags()
	flags.String("config", "", "Path to YAML config file")
	flags.String("report", defaults.ReportPath, "Output CSV report path")
	flags.String("log", defaults.LogFile, "Output log file path (empty disables the log file)")
	flags.String("log-level", defaults.LogLevel, "Console log level (debug, info, warn, error)")
	flags.Int("max-path", defaults.MaxPathLength, "Maximum path length")
	flags.Int("max-filename", defaults.MaxFilenameLength, "Maximum filename length")
	flags.Int("max-file-size-gb", defaults.MaxFileSizeGB, "Maximum file size in GB")
	flags.Int("max-depth", defaults.MaxFolderDepth, "Maximum folder depth")
	flags.StringSlice("blocked-extensions", defaults.BlockedExtensions, "Blocked file extensions")
	flags.Bool("no-allow-hash-percent", false, "Treat # % & as invalid characters")
	flags.StringSlice("exclude-dirs", defaults.ExcludeDirs, "Directory names to exclude from the scan")
	flags.StringSlice("exclude-exts", defaults.ExcludeExtensions, "File extensions to exclude from the scan")
	flags.Int("workers", defaults.Workers, "Number of concurrent directory walkers")
	flags.Bool("anonymize", false, "Hash path components in the report")
	flags.Bool("fail-on-issues", false, "Exit with code 1 when any issue is found")
	flags.String("summary-json", "", "Write a JSON summary to this path")
	flags.String("spo-url", "", "Destination site URL used to project path lengths")
	flags.String("spo-library", "", "Destination document library")
	flags.String("destination-type", "", "Destination type (sharepoint, teams, onedrive)")
	flags.Bool("no-history", false, "Do not record this run in the history database")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadScanConfig(cmd)
	if err != nil {
		return &ExitError{Code: runner.ExitConfigError, Err: err}
	}

	log, closeLog := newRunLogger(cmd.ErrOrStderr(), cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := runner.Run(ctx, runner.Options{
		Config: cfg,
		Root:   args[0],
		Logger: log,
	})
	printResult(cmd.OutOrStdout(), cfg, out)

	if out.ExitCode != 0 || err != nil {
		return &ExitError{Code: out.ExitCode, Err: err}
	}
	return nil
}

// loadScanConfig loads the config file and applies every flag the user set
func loadScanConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if flags.Changed("report") {
		cfg.ReportPath, _ = flags.GetString("report")
	}
	if flags.Changed("log") {
		cfg.LogFile, _ = flags.GetString("log")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("max-path") {
		cfg.MaxPathLength, _ = flags.GetInt("max-path")
	}
	if flags.Changed("max-filename") {
		cfg.MaxFilenameLength, _ = flags.GetInt("max-filename")
	}
	if flags.Changed("max-file-size-gb") {
		cfg.MaxFileSizeGB, _ = flags.GetInt("max-file-size-gb")
	}
	if flags.Changed("max-depth") {
		cfg.MaxFolderDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("blocked-extensions") {
		cfg.BlockedExtensions, _ = flags.GetStringSlice("blocked-extensions")
	}
	if noHash, _ := flags.GetBool("no-allow-hash-percent"); noHash {
		cfg.AllowHashPercent = false
	}
	if flags.Changed("exclude-dirs") {
		cfg.ExcludeDirs, _ = flags.GetStringSlice("exclude-dirs")
	}
	if flags.Changed("exclude-exts") {
		cfg.ExcludeExtensions, _ = flags.GetStringSlice("exclude-exts")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if anonymize, _ := flags.GetBool("anonymize"); anonymize {
		cfg.Anonymize = true
	}
	if fail, _ := flags.GetBool("fail-on-issues"); fail {
		cfg.FailOnIssues = true
	}
	if flags.Changed("summary-json") {
		cfg.SummaryJSON, _ = flags.GetString("summary-json")
	}
	if flags.Changed("spo-url") {
		cfg.Destination.SiteURL, _ = flags.GetString("spo-url")
	}
	if flags.Changed("spo-library") {
		cfg.Destination.Library, _ = flags.GetString("spo-library")
	}
	if flags.Changed("destination-type") {
		cfg.Destination.Type, _ = flags.GetString("destination-type")
	}
	if noHistory, _ := flags.GetBool("no-history"); noHistory {
		cfg.History.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRunLogger logs to the console and, when configured, to the log file.
// A log file that cannot be opened only produces a warning.
func newRunLogger(console io.Writer, cfg *config.Config) (logger.Logger, func()) {
	consoleLog := logger.NewConsoleLogger(console, cfg.LogLevel)
	if cfg.LogFile == "" {
		return consoleLog, func() {}
	}

	fileLog, err := logger.NewFileLogger(cfg.LogFile, "info")
	if err != nil {
		consoleLog.LogWarn(fmt.Sprintf("Could not create log file %s: %v", cfg.LogFile, err))
		return consoleLog, func() {}
	}
	return logger.Multi(consoleLog, fileLog), func() { fileLog.Close() }
}

func printResult(w io.Writer, cfg *config.Config, out *runner.Outcome) {
	if out == nil || out.Result == nil {
		return
	}
	result := out.Result

	useColor := logger.IsTerminal(w)
	paint := func(c *color.Color, s string) string {
		if useColor {
			return c.Sprint(s)
		}
		return s
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(color.New(color.Bold), "Preflight Summary:"))
	fmt.Fprintf(w, "  Items scanned: %s\n", humanize.Comma(result.ItemsScanned))
	fmt.Fprintf(w, "  Data scanned:  %s\n", humanize.IBytes(uint64(result.Progress.ScannedSize)))

	issues := humanize.Comma(result.IssuesFound)
	if result.IssuesFound > 0 {
		issues = paint(color.New(color.FgYellow, color.Bold), issues)
	} else {
		issues = paint(color.New(color.FgGreen), issues)
	}
	fmt.Fprintf(w, "  Issues found:  %s\n", issues)
	for _, line := range runner.FormatIssuesByType(out.IssuesByType) {
		fmt.Fprintf(w, "    %s\n", line)
	}
	fmt.Fprintf(w, "  Duration:      %s\n", result.Duration.Round(time.Millisecond))
	if result.ReportFinalized {
		fmt.Fprintf(w, "  Report:        %s\n", result.ReportPath)
	}
	if result.Cancelled {
		fmt.Fprintln(w, paint(color.New(color.FgYellow), "  Scan was cancelled; the report is partial."))
	}
	if cfg.Anonymize && result.Salt != "" {
		fmt.Fprintf(w, "  Salt:          %s\n", result.Salt)
	}

	status := fmt.Sprintf("  Result:        %s (exit %d)", runner.Describe(out.ExitCode), out.ExitCode)
	switch out.ExitCode {
	case runner.ExitClean:
		status = paint(color.New(color.FgGreen), status)
	case runner.ExitIssuesFound:
		status = paint(color.New(color.FgYellow), status)
	default:
		status = paint(color.New(color.FgRed), status)
	}
	fmt.Fprintln(w, status)
}
