// Package report streams issues to the CSV report as they are found.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	"spo-preflight/internal/models"
)

// utf8BOM makes spreadsheet tools detect the encoding
const utf8BOM = "\xEF\xBB\xBF"

// ErrReportLocked is returned when another run holds the report lock
var ErrReportLocked = errors.New("report is being written by another scan")

var (
	baseColumns = []string{
		"ItemType", "FullPath", "IssueType", "CurrentValue", "SuggestedFix",
		"CharacterCount", "CharacterCountPath",
	}
	destinationColumns = []string{"DestinationCharacterCount", "DestinationPath"}
	tailColumns        = []string{"FileSizeMB", "FolderDepth"}
)

// Options control the shape of the report
type Options struct {
	// Destination adds the destination columns for the whole run
	Destination *models.Destination
	// Anonymizer, when set, hashes names before they are written
	Anonymizer *Anonymizer
}

// Header returns the column names for a report with or without destination
// columns.
func Header(withDestination bool) []string {
	cols := append([]string{}, baseColumns...)
	if withDestination {
		cols = append(cols, destinationColumns...)
	}
	return append(cols, tailColumns...)
}

// Writer appends one row per issue. It is safe for concurrent use.
type Writer struct {
	path   string
	file   *os.File
	csv    *csv.Writer
	lock   *flock.Flock
	opts   Options
	mu     sync.Mutex
	rows   int64
	closed bool
}

// Open creates (truncating) the report at path, writes the BOM and the
// header, and holds an exclusive lock on path+".lock" until Close.
func Open(path string, opts Options) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, models.NewScanError(models.ErrOutput, path, fmt.Errorf("failed to create report directory: %w", err))
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, models.NewScanError(models.ErrOutput, path, fmt.Errorf("failed to lock report: %w", err))
	}
	if !locked {
		return nil, models.NewScanError(models.ErrOutput, path, ErrReportLocked)
	}

	file, err := os.Create(path)
	if err != nil {
		lock.Unlock()
		return nil, models.NewScanError(models.ErrOutput, path, fmt.Errorf("failed to create report: %w", err))
	}

	w := &Writer{
		path: path,
		file: file,
		csv:  csv.NewWriter(file),
		lock: lock,
		opts: opts,
	}

	if _, err := file.WriteString(utf8BOM); err != nil {
		w.abort()
		return nil, models.NewScanError(models.ErrOutput, path, err)
	}
	w.csv.Write(Header(opts.Destination != nil))
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.abort()
		return nil, models.NewScanError(models.ErrOutput, path, err)
	}
	return w, nil
}

// Path returns the report location
func (w *Writer) Path() string { return w.path }

// Rows returns the number of issue rows written so far
func (w *Writer) Rows() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Write appends issue and flushes it to disk
func (w *Writer) Write(issue models.Issue) error {
	if w.opts.Anonymizer != nil {
		base := ""
		if w.opts.Destination != nil {
			base = w.opts.Destination.Base
		}
		issue = w.opts.Anonymizer.Issue(issue, base)
	}
	record := w.record(issue)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return models.NewScanError(models.ErrOutput, w.path, os.ErrClosed)
	}
	w.csv.Write(record)
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return models.NewScanError(models.ErrOutput, w.path, err)
	}
	w.rows++
	return nil
}

func (w *Writer) record(issue models.Issue) []string {
	row := []string{
		string(issue.ItemType),
		issue.FullPath,
		string(issue.Kind),
		issue.CurrentValue,
		issue.SuggestedFix,
		strconv.Itoa(issue.NameLength),
		strconv.Itoa(issue.PathLength),
	}
	if w.opts.Destination != nil {
		destLen := ""
		if issue.DestinationLength > 0 {
			destLen = strconv.Itoa(issue.DestinationLength)
		}
		row = append(row, destLen, issue.DestinationPath)
	}
	return append(row, issue.FileSizeMB, strconv.Itoa(issue.FolderDepth))
}

// Close flushes the report, closes the file and releases the lock. Calling
// Close more than once is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	err := w.csv.Error()
	if serr := w.file.Sync(); err == nil && serr != nil {
		err = serr
	}
	if cerr := w.file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	w.release()
	if err != nil {
		return models.NewScanError(models.ErrOutput, w.path, fmt.Errorf("failed to finalize report: %w", err))
	}
	return nil
}

func (w *Writer) abort() {
	w.closed = true
	w.file.Close()
	w.release()
}

// release unlocks the report. The lock file stays: unlinking it would let
// a waiting run lock the old inode while a new run locks a fresh file.
func (w *Writer) release() {
	w.lock.Unlock()
}
