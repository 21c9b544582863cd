package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/username/taxfolio/declaration/src/logger"
)

type CountryInfo struct {
	Country string `json:"country"`
	Alpha2  string `json:"alpha2"`
	Alpha3  string `json:"alpha3"`
	Numeric string `json:"numeric"`
}

// CountryDirectory resolves the country of a security from its ISIN prefix.
// Without loaded data it still resolves codes, but has no names.
type CountryDirectory struct {
	byAlpha2 map[string]CountryInfo
}

func NewCountryDirectory(countries []CountryInfo) *CountryDirectory {
	d := &CountryDirectory{byAlpha2: make(map[string]CountryInfo, len(countries))}
	for _, c := range countries {
		d.byAlpha2[strings.ToUpper(c.Alpha2)] = c
	}
	return d
}

// LoadCountryDirectory reads a JSON list of CountryInfo.
func LoadCountryDirectory(filePath string) (*CountryDirectory, error) {
	logger.L.Info("Initializing country data", "path", filePath)
	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read country data file '%s': %w", filePath, err)
	}
	var countries []CountryInfo
	if err := json.Unmarshal(fileData, &countries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal country data from '%s': %w", filePath, err)
	}
	logger.L.Info("Country data loaded successfully.", "path", filePath, "countryCount", len(countries))
	return NewCountryDirectory(countries), nil
}

// CountryOf returns the alpha-2 code of an ISIN, or "XX" if it is not an ISIN.
func (d *CountryDirectory) CountryOf(isin string) string {
	id := strings.ToUpper(strings.TrimSpace(isin))
	if len(id) != 12 || !isAlpha(id[0]) || !isAlpha(id[1]) {
		return "XX"
	}
	code := id[:2]
	if len(d.byAlpha2) > 0 {
		if _, ok := d.byAlpha2[code]; !ok {
			// XS and other supranational prefixes have no country entry
			logger.L.Debug("ISIN prefix not in country data", "isin", isin, "prefix", code)
		}
	}
	return code
}

// CountryName returns "numeric - Country" for an alpha-2 code, or "" when unknown.
func (d *CountryDirectory) CountryName(code string) string {
	info, ok := d.byAlpha2[strings.ToUpper(code)]
	if !ok {
		return ""
	}
	numeric := strings.TrimSpace(info.Numeric)
	if numeric == "" {
		return info.Country
	}
	return fmt.Sprintf("%s - %s", numeric, info.Country)
}

func isAlpha(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
