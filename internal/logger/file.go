package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileLogger appends "2006-01-02 15:04:05 - LEVEL - message" lines to a log
// file. It is the persistent companion of the console output.
type FileLogger struct {
	file     *os.File
	path     string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger opens (or creates) path for appending, creating the parent
// directory if needed.
func NewFileLogger(path string, logLevel string) (*FileLogger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return &FileLogger{
		file:     file,
		path:     path,
		logLevel: normalizeLogLevel(logLevel),
	}, nil
}

// Path returns the log file location
func (fl *FileLogger) Path() string { return fl.path }

func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("debug", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("info", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("warn", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("error", message) }

func (fl *FileLogger) logWithLevel(level, message string) {
	if logLevelToInt(level) < logLevelToInt(fl.logLevel) {
		return
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.file == nil {
		return
	}
	name := strings.ToUpper(level)
	if level == "warn" {
		name = "WARNING"
	}
	fmt.Fprintf(fl.file, "%s - %s - %s\n", time.Now().Format("2006-01-02 15:04:05"), name, message)
}

// Close flushes and closes the log file
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.file == nil {
		return nil
	}
	err := fl.file.Close()
	fl.file = nil
	return err
}
