// Package rules evaluates single filesystem items against the SharePoint
// Online naming, length, size and depth limits. Everything here is pure: the
// walker supplies names, paths and sizes and receives issue records back.
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"spo-preflight/internal/models"
)

const bytesPerMB = 1024 * 1024

// Item is what the walker knows about one entry
type Item struct {
	Name     string
	FullPath string
	Root     string
	IsFile   bool
	Size     int64
}

// Evaluator applies the rule catalogue using one ScanConfig
type Evaluator struct {
	cfg       models.ScanConfig
	sanitizer Sanitizer
}

// NewEvaluator creates an evaluator for cfg
func NewEvaluator(cfg models.ScanConfig) *Evaluator {
	return &Evaluator{
		cfg:       cfg,
		sanitizer: NewSanitizer(cfg.InvalidChars, cfg.MaxFilenameLength),
	}
}

// SuggestFix returns the sanitized, length-bounded form of name
func (e *Evaluator) SuggestFix(name string) string {
	return e.sanitizer.SuggestFix(name)
}

// measurements are computed once per item before any rule fires
type measurements struct {
	itemType   models.ItemType
	nameLen    int
	pathLen    int
	destLen    int
	destPath   string
	depth      int
	fileSizeMB string
	sizeMB     float64
}

func (e *Evaluator) measure(item Item) measurements {
	m := measurements{
		itemType: models.ItemFolder,
		nameLen:  utf8.RuneCountInString(item.Name),
		pathLen:  PathLength(item.FullPath),
		depth:    Depth(item.Root, item.FullPath),
	}
	if item.IsFile {
		m.itemType = models.ItemFile
		m.sizeMB = float64(item.Size) / bytesPerMB
		m.fileSizeMB = fmt.Sprintf("%.2f", m.sizeMB)
	}
	if e.cfg.Destination != nil {
		if projected, ok := ProjectDestination(e.cfg.Destination.Base, item.Root, item.FullPath); ok {
			m.destPath = projected
			m.destLen = PathLength(projected)
		}
	}
	return m
}

// effectivePathLength is the projected length when one exists
func (m measurements) effectivePathLength() int {
	if m.destPath != "" {
		return m.destLen
	}
	return m.pathLen
}

func (e *Evaluator) issue(item Item, m measurements, kind models.IssueKind, current, fix string) models.Issue {
	return models.Issue{
		ItemType:          m.itemType,
		FullPath:          item.FullPath,
		Kind:              kind,
		CurrentValue:      current,
		SuggestedFix:      fix,
		NameLength:        m.nameLen,
		PathLength:        m.pathLen,
		DestinationLength: m.destLen,
		DestinationPath:   m.destPath,
		FileSizeMB:        m.fileSizeMB,
		FolderDepth:       m.depth,
	}
}

// Evaluate runs every rule against item. Rules are independent, so an item
// can produce several issues.
func (e *Evaluator) Evaluate(item Item) []models.Issue {
	m := e.measure(item)
	var issues []models.Issue

	if IsReservedName(item.Name) {
		issues = append(issues, e.issue(item, m, models.KindReservedName, item.Name, reservedFix(item.Name, item.IsFile)))
	}

	if length := m.effectivePathLength(); length > e.cfg.MaxPathLength {
		issues = append(issues, e.issue(item, m, models.KindPathTooLong,
			strconv.Itoa(length), fmt.Sprintf("Shorten to ≤%d chars", e.cfg.MaxPathLength)))
	}

	if m.nameLen > e.cfg.MaxFilenameLength {
		issues = append(issues, e.issue(item, m, models.KindFilenameTooLong, item.Name, e.SuggestFix(item.Name)))
	}

	if found := e.invalidCharsIn(item.Name); len(found) > 0 {
		current := fmt.Sprintf("%s (chars: %s)", item.Name, strings.Join(found, ", "))
		issues = append(issues, e.issue(item, m, models.KindInvalidChars, current, e.SuggestFix(item.Name)))
	}

	if strings.Trim(item.Name, trimSet) != item.Name {
		issues = append(issues, e.issue(item, m, models.KindLeadingTrailing, item.Name, e.SuggestFix(item.Name)))
	}

	if item.IsFile {
		_, rawExt := splitExt(item.Name)
		if _, blocked := e.cfg.BlockedExtensions[strings.ToLower(rawExt)]; blocked {
			issues = append(issues, e.issue(item, m, models.KindBlockedExtension, rawExt, "Remove or rename file"))
		}

		if item.Size > e.cfg.MaxFileSizeBytes {
			issues = append(issues, e.issue(item, m, models.KindFileTooLarge,
				fmt.Sprintf("%.2f MB", m.sizeMB), fmt.Sprintf("Split or reduce to ≤%d GB", e.cfg.MaxFileSizeGB)))
		}
	}

	if m.depth > e.cfg.MaxFolderDepth {
		issues = append(issues, e.issue(item, m, models.KindExcessiveDepth,
			strconv.Itoa(m.depth), fmt.Sprintf("Flatten hierarchy to ≤%d levels", e.cfg.MaxFolderDepth)))
	}

	return issues
}

// CollisionIssue reports item as colliding with its case-insensitive twins
func (e *Evaluator) CollisionIssue(item Item, others []string) models.Issue {
	m := e.measure(item)
	current := fmt.Sprintf("%s (collides with: %s)", item.Name, strings.Join(others, ", "))
	fix := fmt.Sprintf("Rename to make unique: %s_1, %s_2, etc.", item.Name, item.Name)
	return e.issue(item, m, models.KindCaseDuplicate, current, fix)
}

// invalidCharsIn lists the distinct invalid characters of name in the order
// they first appear.
func (e *Evaluator) invalidCharsIn(name string) []string {
	var found []string
	seen := make(map[rune]bool)
	for _, r := range name {
		if _, bad := e.cfg.InvalidChars[r]; bad && !seen[r] {
			seen[r] = true
			found = append(found, string(r))
		}
	}
	return found
}

func reservedFix(name string, isFile bool) string {
	if !isFile {
		return name + "_folder"
	}
	stem, ext := splitExt(name)
	return stem + "_file" + ext
}
