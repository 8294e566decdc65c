package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/errgroup"

	"spo-preflight/internal/logger"
	"spo-preflight/internal/models"
	"spo-preflight/internal/retry"
	"spo-preflight/internal/rules"
)

// progressInterval is how many items pass between progress log lines
const progressInterval = 1000

var (
	ErrRootNotFound     = errors.New("scan path does not exist")
	ErrRootNotDirectory = errors.New("scan path is not a directory")
)

// Sink receives every issue as soon as it is found
type Sink interface {
	Write(issue models.Issue) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(models.Issue) error

func (f SinkFunc) Write(issue models.Issue) error { return f(issue) }

// Option configures a Scanner
type Option func(*Scanner)

// WithFilesystem walks fs instead of the OS filesystem. Paths inside fs are
// reported under the root passed to Scan.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Scanner) { s.fs = fs }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(l logger.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithSinks adds issue sinks
func WithSinks(sinks ...Sink) Option {
	return func(s *Scanner) { s.sinks = append(s.sinks, sinks...) }
}

// WithRetryPolicy overrides the policy used for size lookups and listings
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Scanner) { s.retry = p }
}

// Scanner walks one directory tree and reports every rule violation. A
// Scanner runs a single scan; create a new one for every run.
type Scanner struct {
	config    models.ScanConfig
	evaluator *rules.Evaluator
	fs        billy.Filesystem
	logger    logger.Logger
	sinks     []Sink
	retry     retry.Policy
	state     *models.ScanState

	root  string
	group *errgroup.Group
}

// frame is one directory on the walk stack
type frame struct {
	dir        string
	entries    []os.FileInfo
	collisions map[string][]string
	next       int
}

func New(config models.ScanConfig, opts ...Option) *Scanner {
	if config.Workers <= 0 {
		config.Workers = 1
	}

	s := &Scanner{
		config:    config,
		evaluator: rules.NewEvaluator(config),
		logger:    logger.Nop(),
		retry:     retry.DefaultPolicy(),
		state:     models.NewScanState(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateRoot resolves root to an absolute path and checks that it is an
// existing directory.
func ValidateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("empty path provided: %w", ErrRootNotFound)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", abs, ErrRootNotFound)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, ErrRootNotDirectory)
	}
	return abs, nil
}

// Scan walks root depth-first and streams issues to the sinks. Cancelling
// ctx stops the walk at the next step; the partial result is still
// returned. The only error returned after the walk starts is a sink failure.
func (s *Scanner) Scan(ctx context.Context, root string) (*models.ScanResult, error) {
	if s.fs == nil {
		abs, err := ValidateRoot(root)
		if err != nil {
			return nil, err
		}
		root = abs
		s.fs = osfs.New(abs)
	}
	s.root = filepath.Clean(root)

	// the first sink failure cancels every walker
	group, walkCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.Workers)
	s.group = group

	start := time.Now()
	s.state.MarkStarted(start)

	group.Go(func() error {
		return s.walk(walkCtx, string(filepath.Separator))
	})
	fatal := group.Wait()

	progress := s.state.Snapshot()
	result := &models.ScanResult{
		Root:         s.root,
		ItemsScanned: progress.ItemsScanned,
		IssuesFound:  progress.IssuesFound,
		Cancelled:    ctx.Err() != nil,
		Progress:     progress,
		Duration:     time.Since(start),
		Salt:         s.state.Salt,
	}

	if fatal != nil {
		result.Error = fatal.Error()
		return result, fatal
	}
	if result.Cancelled {
		s.logger.LogWarn(fmt.Sprintf("Scan cancelled after %s items", humanize.Comma(result.ItemsScanned)))
	}
	return result, nil
}

// walk processes the subtree under dir with its own frame stack. It only
// fails when a sink does; cancellation ends it quietly.
func (s *Scanner) walk(ctx context.Context, dir string) error {
	var stack []*frame
	if f := s.openFrame(ctx, dir); f != nil {
		stack = append(stack, f)
	}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return nil
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		info := top.entries[top.next]
		top.next++

		child := s.fs.Join(top.dir, info.Name())
		if err := s.visit(ctx, child, info, top.collisions); err != nil {
			return err
		}

		if !info.IsDir() || s.spawn(ctx, child) {
			continue
		}
		if f := s.openFrame(ctx, child); f != nil {
			stack = append(stack, f)
		}
	}
	return nil
}

// spawn hands dir to a new walker when a worker slot is free
func (s *Scanner) spawn(ctx context.Context, dir string) bool {
	return s.group.TryGo(func() error {
		return s.walk(ctx, dir)
	})
}

// openFrame lists dir, drops excluded entries and precomputes collisions.
// A listing failure is logged and yields nil.
func (s *Scanner) openFrame(ctx context.Context, dir string) *frame {
	if ctx.Err() != nil {
		return nil
	}
	full := s.fullPath(dir)
	s.state.SetCurrentDirectory(full)

	infos, err := retry.Do(ctx, s.retry, func() ([]os.FileInfo, error) {
		return s.fs.ReadDir(dir)
	})
	if err != nil {
		s.state.DirectoryErrors.Add(1)
		if errors.Is(err, os.ErrPermission) {
			s.logger.LogError(fmt.Sprintf("Permission denied accessing directory: %s", full))
		} else {
			s.logger.LogError(fmt.Sprintf("OS error accessing %s: %v", full, err))
		}
		return nil
	}

	entries := make([]os.FileInfo, 0, len(infos))
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if s.excluded(info) {
			continue
		}
		entries = append(entries, info)
		names = append(names, info.Name())
	}

	return &frame{
		dir:        dir,
		entries:    entries,
		collisions: rules.FindCollisions(names),
	}
}

func (s *Scanner) excluded(info os.FileInfo) bool {
	if info.IsDir() {
		_, skip := s.config.ExcludeDirs[info.Name()]
		return skip
	}
	_, skip := s.config.ExcludeExtensions[rules.Ext(info.Name())]
	return skip
}

// visit evaluates one entry and emits its issues
func (s *Scanner) visit(ctx context.Context, path string, info os.FileInfo, collisions map[string][]string) error {
	item := rules.Item{
		Name:     info.Name(),
		FullPath: s.fullPath(path),
		Root:     s.root,
		IsFile:   info.Mode().IsRegular(),
	}
	if item.IsFile {
		item.Size = s.fileSize(ctx, path, item.FullPath)
	}

	issues := s.evaluator.Evaluate(item)
	if others, ok := collisions[item.Name]; ok {
		issues = append(issues, s.evaluator.CollisionIssue(item, others))
	}

	count := s.state.ItemsScanned.Add(1)
	if item.IsFile {
		s.state.FilesScanned.Add(1)
		s.state.ScannedSize.Add(item.Size)
	} else {
		s.state.FoldersScanned.Add(1)
	}
	if count%progressInterval == 0 {
		s.logger.LogInfo(fmt.Sprintf("Scanned %s items (%s, %s issues)...",
			humanize.Comma(count), humanize.IBytes(uint64(s.state.ScannedSize.Load())),
			humanize.Comma(s.state.IssuesFound.Load())))
	}

	for _, issue := range issues {
		for _, sink := range s.sinks {
			if err := sink.Write(issue); err != nil {
				if !models.IsOutput(err) {
					err = models.NewScanError(models.ErrOutput, item.FullPath, err)
				}
				return err
			}
		}
		s.state.IssuesFound.Add(1)
	}
	return nil
}

// fileSize looks the size up again through the retry policy. A size that
// cannot be determined is treated as zero.
func (s *Scanner) fileSize(ctx context.Context, path, full string) int64 {
	size, err := retry.Do(ctx, s.retry, func() (int64, error) {
		info, err := s.fs.Lstat(path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	})
	if err != nil {
		s.logger.LogWarn(fmt.Sprintf("Could not determine size of %s: %v", full, err))
		return 0
	}
	return size
}

func (s *Scanner) fullPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// GetProgress returns a snapshot of the running scan
func (s *Scanner) GetProgress() models.ScanProgress {
	return s.state.Snapshot()
}
