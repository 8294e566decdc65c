package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the scan reacts to them
type ErrorKind string

const (
	// ErrConfig is raised before scanning starts and aborts the run
	ErrConfig ErrorKind = "config"
	// ErrTransient is retried and then degraded
	ErrTransient ErrorKind = "transient"
	// ErrAccess skips the affected item or subtree
	ErrAccess ErrorKind = "access"
	// ErrOutput aborts the run
	ErrOutput ErrorKind = "output"
	// ErrComputation falls back to a degraded value
	ErrComputation ErrorKind = "computation"
)

// ScanError carries a kind and the path it concerns
type ScanError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewScanError wraps err with a kind and path
func NewScanError(kind ErrorKind, path string, err error) error {
	return &ScanError{Kind: kind, Path: path, Err: err}
}

// ConfigError builds a configuration error from a message
func ConfigError(format string, args ...any) error {
	return &ScanError{Kind: ErrConfig, Err: fmt.Errorf(format, args...)}
}

func isKind(err error, kind ErrorKind) bool {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsConfig reports whether err is a configuration error
func IsConfig(err error) bool { return isKind(err, ErrConfig) }

// IsOutput reports whether err is a fatal report output error
func IsOutput(err error) bool { return isKind(err, ErrOutput) }
