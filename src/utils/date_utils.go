package utils

import (
	"fmt"
	"strings"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	DefaultDateFormat,
	"02-01-2006",
	"20060102",
	"2006-01-02 15:04:05",
	"02/01/2006",
	time.RFC3339,
}

// ParseDate accepts the date layouts found in broker statements and returns
// the calendar day in UTC.
func ParseDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", dateStr)
}
