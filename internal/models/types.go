package models

import (
	"sync"
	"sync/atomic"
	"time"
)

// ItemType distinguishes files from folders in the report
type ItemType string

const (
	ItemFile   ItemType = "File"
	ItemFolder ItemType = "Folder"
)

// IssueKind is the fixed catalogue of migration problems. The string value is
// what appears in the IssueType report column.
type IssueKind string

const (
	KindReservedName     IssueKind = "Reserved device name (Windows)"
	KindPathTooLong      IssueKind = "Path too long"
	KindFilenameTooLong  IssueKind = "Filename too long"
	KindInvalidChars     IssueKind = "Invalid characters"
	KindLeadingTrailing  IssueKind = "Leading/trailing space or period"
	KindBlockedExtension IssueKind = "Blocked file extension"
	KindFileTooLarge     IssueKind = "File too large"
	KindExcessiveDepth   IssueKind = "Excessive folder depth"
	KindCaseDuplicate    IssueKind = "Case-insensitive duplicate"
)

// AllIssueKinds lists every kind in rule order
var AllIssueKinds = []IssueKind{
	KindReservedName,
	KindPathTooLong,
	KindFilenameTooLong,
	KindInvalidChars,
	KindLeadingTrailing,
	KindBlockedExtension,
	KindFileTooLarge,
	KindExcessiveDepth,
	KindCaseDuplicate,
}

// NameDerivedFix reports whether the suggested fix for this kind embeds the
// item's own name.
func (k IssueKind) NameDerivedFix() bool {
	switch k {
	case KindReservedName, KindFilenameTooLong, KindInvalidChars, KindLeadingTrailing, KindCaseDuplicate:
		return true
	}
	return false
}

// Issue is one detected violation for one filesystem item
type Issue struct {
	ItemType          ItemType  `json:"itemType"`
	FullPath          string    `json:"fullPath"`
	Kind              IssueKind `json:"issueType"`
	CurrentValue      string    `json:"currentValue"`
	SuggestedFix      string    `json:"suggestedFix"`
	NameLength        int       `json:"characterCount"`
	PathLength        int       `json:"characterCountPath"`
	DestinationLength int       `json:"destinationCharacterCount,omitempty"`
	DestinationPath   string    `json:"destinationPath,omitempty"`
	FileSizeMB        string    `json:"fileSizeMB"`
	FolderDepth       int       `json:"folderDepth"`
}

// DestinationType is the kind of Microsoft 365 library the tree is headed for
type DestinationType string

const (
	DestinationSharePoint DestinationType = "sharepoint"
	DestinationTeams      DestinationType = "teams"
	DestinationOneDrive   DestinationType = "onedrive"
)

// Destination is the migration target used to project remote path lengths
type Destination struct {
	Type    DestinationType `json:"type"`
	SiteURL string          `json:"siteUrl"`
	Library string          `json:"library"`
	// Base is SiteURL plus the percent-encoded library segment, without a
	// trailing slash.
	Base string `json:"base"`
}

// ScanConfig holds the resolved, immutable thresholds for one scan
type ScanConfig struct {
	MaxPathLength     int                 `json:"maxPathLength"`
	MaxFilenameLength int                 `json:"maxFilenameLength"`
	MaxFileSizeGB     int                 `json:"maxFileSizeGB"`
	MaxFileSizeBytes  int64               `json:"maxFileSizeBytes"`
	MaxFolderDepth    int                 `json:"maxFolderDepth"`
	BlockedExtensions map[string]struct{} `json:"-"`
	InvalidChars      map[rune]struct{}   `json:"-"`
	ExcludeDirs       map[string]struct{} `json:"-"`
	ExcludeExtensions map[string]struct{} `json:"-"`
	Destination       *Destination        `json:"destination,omitempty"`
	Anonymize         bool                `json:"anonymize"`
	Workers           int                 `json:"workers"`
}

// ScanProgress represents the current progress of a scan operation
type ScanProgress struct {
	ItemsScanned     int64     `json:"itemsScanned"`
	FilesScanned     int64     `json:"filesScanned"`
	FoldersScanned   int64     `json:"foldersScanned"`
	ScannedSize      int64     `json:"scannedSize"`
	IssuesFound      int64     `json:"issuesFound"`
	DirectoryErrors  int64     `json:"directoryErrors"`
	StartTime        time.Time `json:"startTime"`
	LastUpdated      time.Time `json:"lastUpdated"`
	CurrentDirectory string    `json:"currentDirectory"`
}

// ScanState is the mutable state owned by a single scan. Counters are atomic
// so parallel walkers can share one state.
type ScanState struct {
	ItemsScanned    atomic.Int64
	FilesScanned    atomic.Int64
	FoldersScanned  atomic.Int64
	ScannedSize     atomic.Int64
	IssuesFound     atomic.Int64
	DirectoryErrors atomic.Int64
	Salt            string

	mu          sync.Mutex
	startTime   time.Time
	currentDir  string
	lastUpdated time.Time
}

// NewScanState creates a state for a scan starting now
func NewScanState(salt string) *ScanState {
	return &ScanState{Salt: salt, startTime: time.Now()}
}

// MarkStarted records when the walk began
func (st *ScanState) MarkStarted(t time.Time) {
	st.mu.Lock()
	st.startTime = t
	st.mu.Unlock()
}

// SetCurrentDirectory records the directory being listed
func (st *ScanState) SetCurrentDirectory(dir string) {
	st.mu.Lock()
	st.currentDir = dir
	st.lastUpdated = time.Now()
	st.mu.Unlock()
}

// Snapshot returns a copy of the counters suitable for reporting
func (st *ScanState) Snapshot() ScanProgress {
	st.mu.Lock()
	started, dir, updated := st.startTime, st.currentDir, st.lastUpdated
	st.mu.Unlock()

	return ScanProgress{
		ItemsScanned:     st.ItemsScanned.Load(),
		FilesScanned:     st.FilesScanned.Load(),
		FoldersScanned:   st.FoldersScanned.Load(),
		ScannedSize:      st.ScannedSize.Load(),
		IssuesFound:      st.IssuesFound.Load(),
		DirectoryErrors:  st.DirectoryErrors.Load(),
		StartTime:        started,
		LastUpdated:      updated,
		CurrentDirectory: dir,
	}
}

// ScanResult contains the final results of a scan operation
type ScanResult struct {
	Root            string        `json:"root"`
	ReportPath      string        `json:"reportPath,omitempty"`
	ItemsScanned    int64         `json:"itemsScanned"`
	IssuesFound     int64         `json:"issuesFound"`
	ReportFinalized bool          `json:"reportFinalized"`
	Cancelled       bool          `json:"cancelled"`
	Progress        ScanProgress  `json:"progress"`
	Duration        time.Duration `json:"duration"`
	Salt            string        `json:"-"`
	Error           string        `json:"error,omitempty"`
}
