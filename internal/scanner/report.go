package scanner

import (
	"context"
	"fmt"

	"spo-preflight/internal/models"
	"spo-preflight/internal/report"
)

// ScanToReport runs Scan with the CSV report at reportPath as the first
// sink. When anonymization is enabled a fresh salt is generated and every
// sink receives hashed issues. The report is closed before returning, also
// on cancellation, so a partial scan still leaves a valid file.
func (s *Scanner) ScanToReport(ctx context.Context, root, reportPath string) (*models.ScanResult, error) {
	if s.fs == nil {
		abs, err := ValidateRoot(root)
		if err != nil {
			return nil, err
		}
		root = abs
	}

	opts := report.Options{Destination: s.config.Destination}
	if s.config.Anonymize {
		salt, err := report.NewSalt()
		if err != nil {
			return nil, err
		}
		s.state.Salt = salt
		opts.Anonymizer = report.NewAnonymizer(salt)
		s.logger.LogInfo(fmt.Sprintf("Anonymization enabled. Salt: %s (save to de-anonymize)", salt))
	}

	w, err := report.Open(reportPath, opts)
	if err != nil {
		return nil, err
	}

	sinks := s.sinks
	if opts.Anonymizer != nil {
		sinks = anonymized(sinks, opts.Anonymizer, s.config.Destination)
	}
	// the report writer anonymizes on its own
	s.sinks = append([]Sink{w}, sinks...)

	result, scanErr := s.Scan(ctx, root)
	closeErr := w.Close()

	if result == nil {
		result = &models.ScanResult{Root: root}
	}
	result.ReportPath = reportPath
	result.ReportFinalized = scanErr == nil && closeErr == nil

	if scanErr != nil {
		return result, scanErr
	}
	if closeErr != nil {
		result.Error = closeErr.Error()
		return result, closeErr
	}
	s.logger.LogInfo(fmt.Sprintf("Report written to: %s", reportPath))
	return result, nil
}

func anonymized(sinks []Sink, an *report.Anonymizer, dest *models.Destination) []Sink {
	base := ""
	if dest != nil {
		base = dest.Base
	}
	out := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		sink := sink
		out = append(out, SinkFunc(func(issue models.Issue) error {
			return sink.Write(an.Issue(issue, base))
		}))
	}
	return out
}
