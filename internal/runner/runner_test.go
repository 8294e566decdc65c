package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spo-preflight/internal/config"
	"spo-preflight/internal/history"
	"spo-preflight/internal/models"
	"spo-preflight/internal/scanner"
)

// memLogger keeps log lines for assertions
type memLogger struct {
	lines []string
}

func (m *memLogger) LogDebug(msg string) { m.lines = append(m.lines, "DEBUG "+msg) }
func (m *memLogger) LogInfo(msg string)  { m.lines = append(m.lines, "INFO "+msg) }
func (m *memLogger) LogWarn(msg string)  { m.lines = append(m.lines, "WARN "+msg) }
func (m *memLogger) LogError(msg string) { m.lines = append(m.lines, "ERROR "+msg) }

func (m *memLogger) contains(s string) bool {
	for _, l := range m.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, rel := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	out := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ReportPath = filepath.Join(out, "report.csv")
	cfg.History.DBPath = filepath.Join(out, "history.db")
	return cfg
}

func TestRunWithIssues(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "CON.txt", "docs/ok.txt", "tools/setup.exe")

	cfg := testConfig(t)
	cfg.SummaryJSON = filepath.Join(filepath.Dir(cfg.ReportPath), "summary.json")
	log := &memLogger{}

	var started *scanner.Scanner
	out, err := Run(context.Background(), Options{
		Config:  cfg,
		Root:    root,
		Logger:  log,
		Started: func(s *scanner.Scanner) { started = s },
	})
	require.NoError(t, err)
	require.NotNil(t, started)

	assert.Equal(t, ExitIssuesFound, out.ExitCode)
	assert.EqualValues(t, 5, out.Result.ItemsScanned)
	assert.EqualValues(t, 2, out.Result.IssuesFound)
	assert.True(t, out.Result.ReportFinalized)
	assert.Equal(t, map[string]int{
		string(models.KindReservedName):     1,
		string(models.KindBlockedExtension): 1,
	}, out.IssuesByType)

	raw, err := os.ReadFile(cfg.SummaryJSON)
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.EqualValues(t, 2, summary["total_issues"])

	assert.True(t, log.contains("SCAN COMPLETE"))
	assert.True(t, log.contains("Scan path: "+root))

	require.NotEmpty(t, out.RunID)
	store, err := history.NewStore(cfg.History.DBPath)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.Get(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, ExitIssuesFound, run.ExitCode)
	assert.EqualValues(t, 2, run.IssuesFound)
}

func TestRunClean(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "fine.txt")
	cfg := testConfig(t)
	cfg.History.Enabled = false

	out, err := Run(context.Background(), Options{Config: cfg, Root: root})
	require.NoError(t, err)
	assert.Equal(t, ExitClean, out.ExitCode)
	assert.Empty(t, out.RunID)
	_, err = os.Stat(cfg.History.DBPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunFailOnIssues(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "PRN")
	cfg := testConfig(t)
	cfg.FailOnIssues = true
	log := &memLogger{}

	out, err := Run(context.Background(), Options{Config: cfg, Root: root, Logger: log})
	require.NoError(t, err)
	assert.Equal(t, ExitFailed, out.ExitCode)
	assert.True(t, log.contains("FAIL: 1 issues found"))
}

func TestRunRootErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	out, err := Run(context.Background(), Options{Config: testConfig(t), Root: filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, scanner.ErrRootNotFound)
	assert.Equal(t, ExitFailed, out.ExitCode)

	out, err = Run(context.Background(), Options{Config: testConfig(t), Root: file})
	assert.ErrorIs(t, err, scanner.ErrRootNotDirectory)
	assert.Equal(t, ExitNotDir, out.ExitCode)
}

func TestRunConfigError(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFolderDepth = 0
	out, err := Run(context.Background(), Options{Config: cfg, Root: t.TempDir()})
	assert.True(t, models.IsConfig(err))
	assert.Equal(t, ExitConfigError, out.ExitCode)
}

func TestRunReportUnwritable(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt")
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	cfg := testConfig(t)
	cfg.ReportPath = filepath.Join(blocker, "report.csv")

	out, err := Run(context.Background(), Options{Config: cfg, Root: root})
	require.Error(t, err)
	assert.True(t, models.IsOutput(err))
	assert.Equal(t, ExitOutputError, out.ExitCode)
}

func TestExitCode(t *testing.T) {
	withIssues := &models.ScanResult{IssuesFound: 3}
	clean := &models.ScanResult{}

	tests := []struct {
		name         string
		result       *models.ScanResult
		err          error
		failOnIssues bool
		want         int
	}{
		{"Clean", clean, nil, false, ExitClean},
		{"Issues", withIssues, nil, false, ExitIssuesFound},
		{"Issues with fail flag", withIssues, nil, true, ExitFailed},
		{"Clean with fail flag", clean, nil, true, ExitClean},
		{"Missing root", nil, fmt.Errorf("x: %w", scanner.ErrRootNotFound), false, ExitFailed},
		{"Not a directory", nil, fmt.Errorf("x: %w", scanner.ErrRootNotDirectory), false, ExitNotDir},
		{"Output", withIssues, models.NewScanError(models.ErrOutput, "r.csv", errors.New("disk full")), false, ExitOutputError},
		{"Config", nil, models.ConfigError("bad"), false, ExitConfigError},
		{"Unknown", nil, errors.New("boom"), false, ExitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.result, tt.err, tt.failOnIssues))
		})
	}
}

func TestFormatIssuesByType(t *testing.T) {
	lines := FormatIssuesByType(map[string]int{
		string(models.KindCaseDuplicate): 2,
		string(models.KindReservedName):  1200,
	})
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Reserved device name (Windows):"))
	assert.True(t, strings.HasSuffix(lines[0], "1,200"))
	assert.True(t, strings.HasPrefix(lines[1], "Case-insensitive duplicate:"))
}
