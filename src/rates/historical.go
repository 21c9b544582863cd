package rates

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
)

// DefaultObservationsPath selects the observations of an ECB SDMX export.
const DefaultObservationsPath = "$.root.Obs"

type memorySource struct {
	quotes map[string]map[string]decimal.Decimal // currency -> day -> value
}

func (m *memorySource) observation(currency string, date time.Time, lookback int) (decimal.Decimal, time.Time, error) {
	byDay := m.quotes[currency]
	for i := 0; i <= lookback; i++ {
		d := date.AddDate(0, 0, -i)
		if v, ok := byDay[dayKey(d)]; ok {
			return v, d, nil
		}
	}
	return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s on %s", ErrRateNotFound, currency, dayKey(date))
}

// NewHistoricalProvider builds an in-memory provider over base-quoted observations.
func NewHistoricalProvider(obs []models.RateObservation, base, local string, lookbackDays int) *CrossRates {
	src := &memorySource{quotes: make(map[string]map[string]decimal.Decimal)}
	for _, o := range obs {
		ccy := strings.ToUpper(o.Currency)
		if src.quotes[ccy] == nil {
			src.quotes[ccy] = make(map[string]decimal.Decimal)
		}
		src.quotes[ccy][dayKey(o.Date)] = o.Value
	}
	return newCrossRates(src, base, local, lookbackDays)
}

// LoadHistoricalFile reads observations from a JSON file. path is a JSONPath
// expression selecting the list of {_TIME_PERIOD, _OBS_VALUE, _CCY} objects.
func LoadHistoricalFile(filePath, path string) ([]models.RateObservation, error) {
	logger.L.Info("Loading historical exchange rates", "path", filePath, "jsonPath", path)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading historical exchange rate file '%s': %w", filePath, err)
	}
	obs, err := ParseHistorical(data, path)
	if err != nil {
		return nil, fmt.Errorf("error parsing historical exchange rates from '%s': %w", filePath, err)
	}
	logger.L.Info("Historical exchange rates loaded successfully.", "path", filePath, "observationCount", len(obs))
	return obs, nil
}

// ParseHistorical decodes observations from raw JSON.
func ParseHistorical(data []byte, path string) ([]models.RateObservation, error) {
	if path == "" {
		path = DefaultObservationsPath
	}
	var jobj any
	if err := json.Unmarshal(data, &jobj); err != nil {
		return nil, err
	}
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("selecting %q: %w", path, err)
	}
	// re-encode the selection so it can be decoded into typed observations
	selected, err := json.Marshal(jval)
	if err != nil {
		return nil, err
	}
	var raw []models.ExchangeRateObs
	if err := json.Unmarshal(selected, &raw); err != nil {
		return nil, fmt.Errorf("%q does not select a list of observations: %w", path, err)
	}

	out := make([]models.RateObservation, 0, len(raw))
	for _, r := range raw {
		date, err := time.Parse("2006-01-02", r.TimePeriod)
		if err != nil {
			logger.L.Warn("Skipping observation with invalid date", "currency", r.Ccy, "date", r.TimePeriod)
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(r.ObsValue))
		if err != nil || !value.IsPositive() {
			logger.L.Warn("Skipping observation with invalid value", "currency", r.Ccy, "date", r.TimePeriod, "value", r.ObsValue)
			continue
		}
		out = append(out, models.RateObservation{Currency: strings.ToUpper(r.Ccy), Date: date, Value: value})
	}
	return out, nil
}
