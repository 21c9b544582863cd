// Package csv reads statements already normalized to the engine's own
// column layout, one activity per row.
package csv

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/utils"
)

const Name = "csv"

// Columns understood by the parser. type, security_id, date and currency are
// required; the rest default to zero or empty.
var Columns = []string{
	"type", "security_id", "date", "quantity", "price", "currency",
	"fee", "amount", "withholding_tax", "country", "name",
}

var required = []string{"type", "security_id", "date", "currency"}

type CSVParser struct{}

func NewParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(file io.Reader) ([]models.ActivityRecord, error) {
	reader := stdcsv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := col[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	var records []models.ActivityRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if field("type") == "" && field("security_id") == "" {
			continue
		}

		date, err := utils.ParseDate(field("date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := models.ActivityRecord{
			Type:       models.ActivityType(strings.ToUpper(field("type"))),
			SecurityID: field("security_id"),
			Name:       field("name"),
			Date:       date,
			Currency:   strings.ToUpper(field("currency")),
			Country:    strings.ToUpper(field("country")),
			Source:     Name,
			RawType:    field("type"),
		}
		for _, f := range []struct {
			column string
			dst    *decimal.Decimal
		}{
			{"quantity", &rec.Quantity},
			{"price", &rec.UnitPrice},
			{"fee", &rec.Fee},
			{"amount", &rec.Amount},
			{"withholding_tax", &rec.WithholdingTax},
		} {
			v := field(f.column)
			if v == "" {
				continue
			}
			d, err := utils.ParseLocaleDecimal(v)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, f.column, err)
			}
			*f.dst = d
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *CSVParser) UnsupportedActivityTypes(records []models.ActivityRecord) []string {
	return models.UnsupportedTypes(records)
}
