package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spo-preflight/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 400, cfg.MaxPathLength)
	assert.Equal(t, 255, cfg.MaxFilenameLength)
	assert.Equal(t, 250, cfg.MaxFileSizeGB)
	assert.Equal(t, 20, cfg.MaxFolderDepth)
	assert.Equal(t, []string{".exe", ".dll", ".bat", ".cmd"}, cfg.BlockedExtensions)
	assert.True(t, cfg.AllowHashPercent)
	assert.Contains(t, cfg.ExcludeDirs, "System Volume Information")
	assert.Equal(t, "SPOMigrationReport.csv", cfg.ReportPath)
	assert.Equal(t, "SPOMigrationLog.txt", cfg.LogFile)
	assert.Equal(t, "history.db", filepath.Base(cfg.History.DBPath))
	assert.Equal(t, "reports", filepath.Base(cfg.Server.ReportDir))
	require.NoError(t, cfg.Validate())

	// defaults are copies
	cfg.BlockedExtensions[0] = ".zip"
	assert.Equal(t, ".exe", DefaultBlockedExtensions[0])
}

func TestLoadConfigValidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "preflight.yaml")
	content := `max_path_length: 300
blocked_extensions: [".vbs", "PS1"]
allow_hash_percent: false
workers: 4
destination:
  type: teams
  site_url: https://contoso.sharepoint.com/teams/Marketing
history:
  enabled: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.MaxPathLength)
	assert.Equal(t, 255, cfg.MaxFilenameLength, "absent keys keep defaults")
	assert.Equal(t, []string{".vbs", "PS1"}, cfg.BlockedExtensions)
	assert.False(t, cfg.AllowHashPercent)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, DefaultConfig().History.DBPath, cfg.History.DBPath)
	assert.Equal(t, "teams", cfg.Destination.Type)
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, err := LoadConfig(missing)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, models.IsConfig(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), missing)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(configPath, nil, 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Invalid YAML", "max_path_length: [unclosed"},
		{"Wrong type", "max_path_length: long"},
		{"Unknown key", "max_path: 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.content), 0644))

			_, err := LoadConfig(configPath)
			require.Error(t, err)
			assert.True(t, models.IsConfig(err))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Zero path length", func(c *Config) { c.MaxPathLength = 0 }, "max_path_length"},
		{"Negative depth", func(c *Config) { c.MaxFolderDepth = -1 }, "max_folder_depth"},
		{"Zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"Bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"Empty extension", func(c *Config) { c.BlockedExtensions = []string{".exe", " "} }, "blocked_extensions"},
		{"History without path", func(c *Config) { c.History.DBPath = "" }, "history.db_path"},
		{"History disabled without path", func(c *Config) {
			c.History.Enabled = false
			c.History.DBPath = ""
		}, ""},
		{"Bad destination", func(c *Config) { c.Destination.SiteURL = "http://contoso.sharepoint.com/sites/x" }, "https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, models.IsConfig(err))
		})
	}
}

func TestScanConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockedExtensions = []string{"EXE", ".Dll"}
	cfg.MaxFileSizeGB = 2

	sc, err := cfg.ScanConfig()
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{".exe": {}, ".dll": {}}, sc.BlockedExtensions)
	assert.EqualValues(t, 2*1024*1024*1024, sc.MaxFileSizeBytes)
	assert.Contains(t, sc.ExcludeDirs, "$RECYCLE.BIN")
	assert.Contains(t, sc.ExcludeExtensions, ".cache")
	assert.Nil(t, sc.Destination)

	for _, r := range `~"*:<>?/\{|}` {
		assert.Contains(t, sc.InvalidChars, r)
	}
	assert.NotContains(t, sc.InvalidChars, '#')

	cfg.AllowHashPercent = false
	sc, err = cfg.ScanConfig()
	require.NoError(t, err)
	for _, r := range "#%&" {
		assert.Contains(t, sc.InvalidChars, r)
	}
}

func TestScanConfigInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFilenameLength = 0
	_, err := cfg.ScanConfig()
	assert.True(t, models.IsConfig(err))
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, ".exe", NormalizeExtension("EXE"))
	assert.Equal(t, ".tar", NormalizeExtension(" .TAR "))
	assert.Equal(t, "", NormalizeExtension(""))
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()

	clone.ExcludeDirs[0] = "changed"
	clone.MaxPathLength = 1
	clone.Destination.SiteURL = "https://contoso.sharepoint.com/sites/x"

	assert.Equal(t, "$RECYCLE.BIN", cfg.ExcludeDirs[0])
	assert.Equal(t, 400, cfg.MaxPathLength)
	assert.Empty(t, cfg.Destination.SiteURL)
}
