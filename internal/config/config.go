package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"spo-preflight/internal/logger"
	"spo-preflight/internal/models"
)

const bytesPerGB = 1024 * 1024 * 1024

// appName is the directory under the XDG data home that holds history and
// API reports
const appName = "spo-preflight"

// baselineInvalidChars can never be used in a SharePoint name
const baselineInvalidChars = `~"*:<>?/\{|}`

// legacyInvalidChars are rejected only by tenants that have not enabled
// them
const legacyInvalidChars = "#%&"

var (
	DefaultBlockedExtensions = []string{".exe", ".dll", ".bat", ".cmd"}
	DefaultExcludeDirs       = []string{
		"$RECYCLE.BIN", "System Volume Information", "$Recycle.Bin",
		"node_modules", ".git", ".svn", "__pycache__", ".venv", ".vscode",
		"Thumbs.db", ".DS_Store",
	}
	DefaultExcludeExtensions = []string{".tmp", ".temp", ".bak", ".log", ".cache"}
)

// DestinationConfig describes where the tree will be migrated to
type DestinationConfig struct {
	// Type is sharepoint, teams or onedrive
	Type string `yaml:"type" json:"type"`

	// SiteURL is the site, team or OneDrive URL
	SiteURL string `yaml:"site_url" json:"siteUrl"`

	// Library is the document library or channel folder
	Library string `yaml:"library" json:"library"`
}

// HistoryConfig controls the local run history database
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DBPath  string `yaml:"db_path" json:"dbPath"`
}

// ServerConfig holds settings for the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	// ReportDir is where reports of API-started scans are written
	ReportDir string `yaml:"report_dir" json:"reportDir"`
}

// Config represents preflight configuration options
type Config struct {
	MaxPathLength     int      `yaml:"max_path_length" json:"maxPathLength"`
	MaxFilenameLength int      `yaml:"max_filename_length" json:"maxFilenameLength"`
	MaxFileSizeGB     int      `yaml:"max_file_size_gb" json:"maxFileSizeGB"`
	MaxFolderDepth    int      `yaml:"max_folder_depth" json:"maxFolderDepth"`
	BlockedExtensions []string `yaml:"blocked_extensions" json:"blockedExtensions"`

	// AllowHashPercent accepts # % & in names (most tenants allow them)
	AllowHashPercent  bool     `yaml:"allow_hash_percent" json:"allowHashPercent"`
	ExcludeDirs       []string `yaml:"exclude_dirs" json:"excludeDirs"`
	ExcludeExtensions []string `yaml:"exclude_extensions" json:"excludeExtensions"`

	// Workers is the number of concurrent directory walkers
	Workers   int  `yaml:"workers" json:"workers"`
	Anonymize bool `yaml:"anonymize" json:"anonymize"`

	LogLevel     string `yaml:"log_level" json:"logLevel"`
	LogFile      string `yaml:"log_file" json:"logFile"`
	ReportPath   string `yaml:"report_path" json:"reportPath"`
	SummaryJSON  string `yaml:"summary_json" json:"summaryJson"`
	FailOnIssues bool   `yaml:"fail_on_issues" json:"failOnIssues"`

	Destination DestinationConfig `yaml:"destination" json:"destination"`
	History     HistoryConfig     `yaml:"history" json:"history"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// DefaultConfig returns a Config with the SharePoint Online defaults
func DefaultConfig() *Config {
	return &Config{
		MaxPathLength:     400,
		MaxFilenameLength: 255,
		MaxFileSizeGB:     250,
		MaxFolderDepth:    20,
		BlockedExtensions: append([]string{}, DefaultBlockedExtensions...),
		AllowHashPercent:  true,
		ExcludeDirs:       append([]string{}, DefaultExcludeDirs...),
		ExcludeExtensions: append([]string{}, DefaultExcludeExtensions...),
		Workers:           1,
		LogLevel:          "info",
		LogFile:           "SPOMigrationLog.txt",
		ReportPath:        "SPOMigrationReport.csv",
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(xdg.DataHome, appName, "history.db"),
		},
		Server: ServerConfig{
			Addr:      ":8080",
			ReportDir: filepath.Join(xdg.DataHome, appName, "reports"),
		},
	}
}

// Clone returns a copy that shares no slices with c
func (c *Config) Clone() *Config {
	out := *c
	out.BlockedExtensions = append([]string(nil), c.BlockedExtensions...)
	out.ExcludeDirs = append([]string(nil), c.ExcludeDirs...)
	out.ExcludeExtensions = append([]string(nil), c.ExcludeExtensions...)
	return &out
}

// LoadConfig loads configuration from the specified file path.
// An empty path returns the default configuration. A named file that is
// missing is an error.
// Keys present in the file replace the defaults; absent keys keep them.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ConfigError("config file %s not found: %w", path, err)
	}
	if err != nil {
		return nil, models.ConfigError("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, models.ConfigError("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	thresholds := []struct {
		name  string
		value int
	}{
		{"max_path_length", c.MaxPathLength},
		{"max_filename_length", c.MaxFilenameLength},
		{"max_file_size_gb", c.MaxFileSizeGB},
		{"max_folder_depth", c.MaxFolderDepth},
	}
	for _, th := range thresholds {
		if th.value <= 0 {
			return models.ConfigError("%s must be > 0, got %d", th.name, th.value)
		}
	}

	if c.Workers < 1 {
		return models.ConfigError("workers must be >= 1, got %d", c.Workers)
	}

	if !logger.ValidLevel(c.LogLevel) {
		return models.ConfigError("invalid log_level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}

	for _, list := range []struct {
		name  string
		items []string
	}{
		{"blocked_extensions", c.BlockedExtensions},
		{"exclude_extensions", c.ExcludeExtensions},
		{"exclude_dirs", c.ExcludeDirs},
	} {
		for _, item := range list.items {
			if strings.TrimSpace(item) == "" {
				return models.ConfigError("%s cannot contain empty entries", list.name)
			}
		}
	}

	if c.Destination.configured() {
		if _, err := c.Destination.Resolve(); err != nil {
			return err
		}
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return models.ConfigError("history.db_path cannot be empty when history is enabled")
	}

	return nil
}

// ScanConfig builds the immutable scan thresholds. Call Validate first.
func (c *Config) ScanConfig() (models.ScanConfig, error) {
	if err := c.Validate(); err != nil {
		return models.ScanConfig{}, err
	}

	invalid := make(map[rune]struct{})
	for _, r := range baselineInvalidChars {
		invalid[r] = struct{}{}
	}
	if !c.AllowHashPercent {
		for _, r := range legacyInvalidChars {
			invalid[r] = struct{}{}
		}
	}

	excludeDirs := make(map[string]struct{}, len(c.ExcludeDirs))
	for _, d := range c.ExcludeDirs {
		excludeDirs[strings.TrimSpace(d)] = struct{}{}
	}

	sc := models.ScanConfig{
		MaxPathLength:     c.MaxPathLength,
		MaxFilenameLength: c.MaxFilenameLength,
		MaxFileSizeGB:     c.MaxFileSizeGB,
		MaxFileSizeBytes:  int64(c.MaxFileSizeGB) * bytesPerGB,
		MaxFolderDepth:    c.MaxFolderDepth,
		BlockedExtensions: extensionSet(c.BlockedExtensions),
		InvalidChars:      invalid,
		ExcludeDirs:       excludeDirs,
		ExcludeExtensions: extensionSet(c.ExcludeExtensions),
		Anonymize:         c.Anonymize,
		Workers:           c.Workers,
	}

	if c.Destination.configured() {
		dest, err := c.Destination.Resolve()
		if err != nil {
			return models.ScanConfig{}, err
		}
		sc.Destination = dest
	}
	return sc, nil
}

// NormalizeExtension lower-cases ext and makes sure it starts with a dot
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		if n := NormalizeExtension(ext); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Summary lists the effective settings for the start banner
func (c *Config) Summary() []string {
	lines := []string{
		fmt.Sprintf("Max path length: %d", c.MaxPathLength),
		fmt.Sprintf("Max filename length: %d", c.MaxFilenameLength),
		fmt.Sprintf("Max file size: %d GB", c.MaxFileSizeGB),
		fmt.Sprintf("Max folder depth: %d", c.MaxFolderDepth),
		fmt.Sprintf("Blocked extensions: %s", strings.Join(c.BlockedExtensions, ", ")),
		fmt.Sprintf("Allow # %% &: %t", c.AllowHashPercent),
		fmt.Sprintf("Exclude directories: %d patterns", len(c.ExcludeDirs)),
		fmt.Sprintf("Exclude extensions: %d patterns", len(c.ExcludeExtensions)),
		fmt.Sprintf("Workers: %d", c.Workers),
		fmt.Sprintf("Anonymize: %t", c.Anonymize),
	}
	if c.Destination.configured() {
		lines = append(lines, fmt.Sprintf("Destination: %s %s (library %q)",
			c.Destination.Type, c.Destination.SiteURL, c.Destination.Library))
	}
	return lines
}
