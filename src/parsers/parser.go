package parsers

//go:generate mockgen -destination=mocks/mock_parser.go -source=parser.go

import (
	"io"

	"github.com/username/taxfolio/declaration/src/models"
)

// Parser converts one broker statement into activity records.
type Parser interface {
	Parse(file io.Reader) ([]models.ActivityRecord, error)
	// UnsupportedActivityTypes lists the types found in records that the
	// engine cannot process. A non-empty result switches the run to
	// dividends-only output.
	UnsupportedActivityTypes(records []models.ActivityRecord) []string
}
