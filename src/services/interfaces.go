package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/parsers"
)

var (
	ErrUnsupportedParser = parsers.ErrUnsupportedParser
	ErrNoActivities      = errors.New("no activities found")
	ErrParsingFailed     = errors.New("parsing failed")
	ErrProcessingFailed  = errors.New("processing failed")
	ErrReportNotFound    = errors.New("report not found")
)

// SourceInput is the set of statement files of one broker source.
type SourceInput struct {
	Parser string
	Files  []io.Reader
}

// ReportRequest asks for the figures of one or more sources.
type ReportRequest struct {
	Sources []SourceInput
	// Combine merges all sources into a single figure set.
	Combine bool
}

// ReportService runs the declaration computation and keeps recent results.
type ReportService interface {
	Generate(ctx context.Context, req ReportRequest) (*models.Report, error)
	GetReport(runID string) (*models.Report, error)
	RunStage(runID string) (Stage, error)
	// Export writes one table of a report and marks the run exported.
	Export(runID, table, figureKey string, w io.Writer) error
	Parsers() []string
}
