// Package runner ties one preflight run together: it resolves the
// configuration, walks the tree into the CSV report, writes the optional
// JSON summary, records the run in history and maps the outcome to an exit
// code.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"spo-preflight/internal/config"
	"spo-preflight/internal/history"
	"spo-preflight/internal/logger"
	"spo-preflight/internal/models"
	"spo-preflight/internal/scanner"
	"spo-preflight/internal/utils/jsonexport"
)

// Exit codes of a preflight run
const (
	ExitClean       = 0
	ExitFailed      = 1
	ExitNotDir      = 2
	ExitOutputError = 3
	ExitConfigError = 4
	ExitIssuesFound = 10
)

const rule = "======================================================================"

// Options describe one run
type Options struct {
	Config *config.Config
	Root   string
	// ReportPath overrides Config.ReportPath when set
	ReportPath string
	Logger     logger.Logger
	// Started is called with the scanner before the walk begins, so callers
	// can poll its progress
	Started func(*scanner.Scanner)
}

// Outcome is what a run produced
type Outcome struct {
	Result       *models.ScanResult     `json:"result,omitempty"`
	IssuesByType map[string]int         `json:"issuesByType"`
	Summary      *jsonexport.ExportData `json:"-"`
	ExitCode     int                    `json:"exitCode"`
	RunID        string                 `json:"runId,omitempty"`
	StartedAt    time.Time              `json:"startedAt"`
}

// Run executes a full preflight run. The returned error is non-nil when the
// run could not complete; the Outcome is always returned with its ExitCode
// set.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = cfg.ReportPath
	}

	out := &Outcome{StartedAt: time.Now(), IssuesByType: map[string]int{}}

	scanCfg, err := cfg.ScanConfig()
	if err != nil {
		log.LogError(fmt.Sprintf("Invalid configuration: %v", err))
		out.ExitCode = ExitCode(nil, err, cfg.FailOnIssues)
		return out, err
	}

	root, err := scanner.ValidateRoot(opts.Root)
	if err != nil {
		log.LogError(err.Error())
		out.ExitCode = ExitCode(nil, err, cfg.FailOnIssues)
		return out, err
	}

	logBanner(log, cfg, root, reportPath)

	summary := jsonexport.NewSummary()
	s := scanner.New(scanCfg, scanner.WithLogger(log), scanner.WithSinks(summary))
	if opts.Started != nil {
		opts.Started(s)
	}

	log.LogInfo("Scanning started...")
	result, err := s.ScanToReport(ctx, root, reportPath)
	out.Result = result
	data := summary.Data(result, out.StartedAt)
	out.Summary = &data
	out.IssuesByType = data.IssuesByType

	if err != nil {
		log.LogError(fmt.Sprintf("Failed to write report to %s: %v", reportPath, err))
	}

	if err == nil && cfg.SummaryJSON != "" {
		if serr := summary.ExportSummary(result, out.StartedAt, cfg.SummaryJSON); serr != nil {
			err = models.NewScanError(models.ErrOutput, cfg.SummaryJSON, serr)
			log.LogError(fmt.Sprintf("Failed to write JSON summary: %v", serr))
		} else {
			log.LogInfo(fmt.Sprintf("JSON summary written to: %s", cfg.SummaryJSON))
		}
	}

	out.ExitCode = ExitCode(result, err, cfg.FailOnIssues)
	if result != nil {
		logTally(log, result, reportPath)
		if cfg.FailOnIssues && result.IssuesFound > 0 {
			log.LogError(fmt.Sprintf("FAIL: %d issues found. Exiting with code %d.", result.IssuesFound, ExitFailed))
		}
		if cfg.History.Enabled {
			out.RunID = record(ctx, log, cfg.History.DBPath, result, out)
		}
	}
	return out, err
}

// ExitCode maps a run outcome to the process exit status
func ExitCode(result *models.ScanResult, err error, failOnIssues bool) int {
	switch {
	case err == nil:
	case models.IsConfig(err):
		return ExitConfigError
	case errors.Is(err, scanner.ErrRootNotDirectory):
		return ExitNotDir
	case errors.Is(err, scanner.ErrRootNotFound):
		return ExitFailed
	case models.IsOutput(err):
		return ExitOutputError
	default:
		return ExitFailed
	}

	if result == nil || result.IssuesFound == 0 {
		return ExitClean
	}
	if failOnIssues {
		return ExitFailed
	}
	return ExitIssuesFound
}

func logBanner(log logger.Logger, cfg *config.Config, root, reportPath string) {
	log.LogInfo(rule)
	log.LogInfo("SharePoint Online Migration Preflight Scanner")
	log.LogInfo(rule)
	log.LogInfo(fmt.Sprintf("Scan path: %s", root))
	log.LogInfo(fmt.Sprintf("Report: %s", reportPath))
	if cfg.LogFile != "" {
		log.LogInfo(fmt.Sprintf("Log: %s", cfg.LogFile))
	}
	for _, line := range cfg.Summary() {
		log.LogInfo(line)
	}
	log.LogInfo(rule)
}

func logTally(log logger.Logger, result *models.ScanResult, reportPath string) {
	log.LogInfo(rule)
	if result.Cancelled {
		log.LogWarn("SCAN CANCELLED (partial results)")
	} else {
		log.LogInfo("SCAN COMPLETE")
	}
	log.LogInfo(rule)
	log.LogInfo(fmt.Sprintf("Total items scanned: %s", humanize.Comma(result.ItemsScanned)))
	log.LogInfo(fmt.Sprintf("Total issues found: %s", humanize.Comma(result.IssuesFound)))
	log.LogInfo(fmt.Sprintf("Data scanned: %s", humanize.IBytes(uint64(result.Progress.ScannedSize))))
	if result.Progress.DirectoryErrors > 0 {
		log.LogWarn(fmt.Sprintf("Directories not readable: %d", result.Progress.DirectoryErrors))
	}
	log.LogInfo(fmt.Sprintf("Duration: %s", result.Duration.Round(time.Millisecond)))
	log.LogInfo(fmt.Sprintf("Report: %s", reportPath))
	log.LogInfo(rule)
}

// record stores the run in history. Failures are logged, never fatal.
func record(ctx context.Context, log logger.Logger, dbPath string, result *models.ScanResult, out *Outcome) string {
	store, err := history.NewStore(dbPath)
	if err != nil {
		log.LogWarn(fmt.Sprintf("Could not open history database %s: %v", dbPath, err))
		return ""
	}
	defer store.Close()

	run := history.NewRun(result, out.StartedAt, out.IssuesByType, out.ExitCode)
	// a cancelled scan still deserves a history entry
	if err := store.Record(context.WithoutCancel(ctx), run); err != nil {
		log.LogWarn(fmt.Sprintf("Could not record run in history: %v", err))
		return ""
	}
	log.LogDebug(fmt.Sprintf("Run recorded in history as %s", run.ID))
	return run.ID
}

// FormatIssuesByType renders counts in catalogue order, one per line
func FormatIssuesByType(counts map[string]int) []string {
	var lines []string
	for _, kind := range models.AllIssueKinds {
		if n := counts[string(kind)]; n > 0 {
			lines = append(lines, fmt.Sprintf("%-34s %s", string(kind)+":", humanize.Comma(int64(n))))
		}
	}
	return lines
}

// Describe returns a one-line description of an exit code
func Describe(code int) string {
	switch code {
	case ExitClean:
		return "no issues found"
	case ExitIssuesFound:
		return "issues found"
	case ExitFailed:
		return "failed"
	case ExitNotDir:
		return "scan path is not a directory"
	case ExitOutputError:
		return "report could not be written"
	case ExitConfigError:
		return "invalid configuration"
	}
	return fmt.Sprintf("exit code %d", code)
}
