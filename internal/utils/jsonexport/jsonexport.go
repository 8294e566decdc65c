package jsonexport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"spo-preflight/internal/models"
)

// TopLimit bounds every ranked list in the summary
const TopLimit = 50

type LongPath struct {
	Path   string `json:"path"`
	Length int    `json:"length"`
}

type DeepItem struct {
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

type LargeFile struct {
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// ExportData is the layout of the summary file
type ExportData struct {
	ScanTimestamp       string         `json:"scan_timestamp"`
	ScanPath            string         `json:"scan_path"`
	TotalItemsScanned   int64          `json:"total_items_scanned"`
	TotalIssues         int64          `json:"total_issues"`
	IssuesByType        map[string]int `json:"issues_by_type"`
	Top50LongestPaths   []LongPath     `json:"top_50_longest_paths"`
	Top50DeepestFolders []DeepItem     `json:"top_50_deepest_folders"`
	Top50LargestFiles   []LargeFile    `json:"top_50_largest_files"`
	ScanDuration        float64        `json:"scan_duration_seconds"`
}

// Summary aggregates issues as they stream past. It keeps counts and the
// bounded top lists only, never the issues themselves.
type Summary struct {
	mu      sync.Mutex
	total   int64
	byType  map[string]int
	longest *topList
	deepest *topList
	largest *topList
}

func NewSummary() *Summary {
	return &Summary{
		byType:  make(map[string]int),
		longest: newTopList(TopLimit),
		deepest: newTopList(TopLimit),
		largest: newTopList(TopLimit),
	}
}

// Write records one issue. It implements the scanner sink.
func (s *Summary) Write(issue models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byType[string(issue.Kind)]++
	s.longest.offer(issue.FullPath, float64(issue.PathLength))
	if issue.FolderDepth > 0 {
		s.deepest.offer(issue.FullPath, float64(issue.FolderDepth))
	}
	if issue.FileSizeMB != "" {
		if mb, err := strconv.ParseFloat(issue.FileSizeMB, 64); err == nil {
			s.largest.offer(issue.FullPath, mb)
		}
	}
	return nil
}

// Data builds the export document for a finished scan
func (s *Summary) Data(result *models.ScanResult, started time.Time) ExportData {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := make(map[string]int, len(s.byType))
	for k, v := range s.byType {
		byType[k] = v
	}

	data := ExportData{
		ScanTimestamp:       started.Format("2006-01-02T15:04:05.000000"),
		TotalIssues:         s.total,
		IssuesByType:        byType,
		Top50LongestPaths:   make([]LongPath, 0, len(s.longest.items)),
		Top50DeepestFolders: make([]DeepItem, 0, len(s.deepest.items)),
		Top50LargestFiles:   make([]LargeFile, 0, len(s.largest.items)),
	}
	if result != nil {
		data.ScanPath = result.Root
		data.TotalItemsScanned = result.ItemsScanned
		data.ScanDuration = result.Duration.Seconds()
	}
	for _, r := range s.longest.items {
		data.Top50LongestPaths = append(data.Top50LongestPaths, LongPath{Path: r.path, Length: int(r.value)})
	}
	for _, r := range s.deepest.items {
		data.Top50DeepestFolders = append(data.Top50DeepestFolders, DeepItem{Path: r.path, Depth: int(r.value)})
	}
	for _, r := range s.largest.items {
		data.Top50LargestFiles = append(data.Top50LargestFiles, LargeFile{Path: r.path, SizeMB: r.value})
	}
	return data
}

// ExportSummary writes the summary of result to outputPath. The file is
// replaced atomically while holding outputPath+".lock".
func (s *Summary) ExportSummary(result *models.ScanResult, started time.Time, outputPath string) error {
	data, err := json.MarshalIndent(s.Data(result, started), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(outputPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", outputPath, err)
	}
	defer lock.Unlock()

	return writeAtomic(outputPath, append(data, '\n'))
}

// writeAtomic writes through a temp file in the same directory and renames
// it over path
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	tmp = nil
	return nil
}
