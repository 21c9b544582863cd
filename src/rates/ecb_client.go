package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const DefaultECBURL = "https://data-api.ecb.europa.eu/service/data/EXR"

// ECBClient downloads daily reference rates (units of currency per EUR) from
// the ECB Data Portal.
type ECBClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewECBClient creates a client that issues at most one request per interval.
func NewECBClient(baseURL string, interval time.Duration) *ECBClient {
	if baseURL == "" {
		baseURL = DefaultECBURL
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	return &ECBClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Jar: jar, Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Fetch returns the observations of currency between start and end, inclusive.
func (c *ECBClient) Fetch(ctx context.Context, currency string, start, end time.Time) ([]models.RateObservation, error) {
	currency = strings.ToUpper(currency)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/D.%s.EUR.SP00.A?startPeriod=%s&endPeriod=%s&format=jsondata",
		c.baseURL, currency, dayKey(start), dayKey(end))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	logger.L.Debug("Requesting ECB rates", "currency", currency, "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ECB request for %s: %w", currency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: ECB has no series for %s", ErrRateNotFound, currency)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ECB returned status %d for %s: %s", resp.StatusCode, currency, string(body))
	}

	var payload models.ECBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding ECB response for %s: %w", currency, err)
	}
	return observationsFromECB(currency, payload)
}

func observationsFromECB(currency string, payload models.ECBResponse) ([]models.RateObservation, error) {
	if len(payload.DataSets) == 0 || len(payload.Structure.Dimensions.Observation) == 0 {
		return nil, nil
	}
	periods := payload.Structure.Dimensions.Observation[0].Values

	var out []models.RateObservation
	for _, series := range payload.DataSets[0].Series {
		for idx, values := range series.Observations {
			i, err := strconv.Atoi(idx)
			if err != nil || i < 0 || i >= len(periods) || len(values) == 0 {
				continue
			}
			date, err := time.Parse("2006-01-02", periods[i].ID)
			if err != nil {
				continue
			}
			value, err := decimal.NewFromString(values[0].String())
			if err != nil || !value.IsPositive() {
				logger.L.Warn("Skipping ECB observation without a positive value", "currency", currency, "date", periods[i].ID, "value", values[0].String())
				continue
			}
			out = append(out, models.RateObservation{Currency: currency, Date: date, Value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
