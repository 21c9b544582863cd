package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOCAL_CURRENCY", "eur")
	t.Setenv("RATE_LOOKBACK_DAYS", "notanumber")
	t.Setenv("REPORT_CACHE_TTL", "2m")
	t.Setenv("MAX_UPLOAD_SIZE_BYTES", "-5")

	cfg := FromEnv()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "EUR", cfg.LocalCurrency)
	assert.Equal(t, 7, cfg.RateLookbackDays)
	assert.Equal(t, 2*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadSizeBytes)
	assert.Empty(t, cfg.JWTSecret)
}

func TestParseTaxRates(t *testing.T) {
	rates, err := ParseTaxRates([]byte(`
default_rate: "0.05"
countries:
  us: "0.05"
  IE: "0"
`))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.05").Equal(rates.Default))
	assert.True(t, rates.RateFor("IE").IsZero())
	assert.True(t, decimal.RequireFromString("0.05").Equal(rates.RateFor("US")))
	assert.True(t, decimal.RequireFromString("0.05").Equal(rates.RateFor("DE")))
}

func TestParseTaxRates_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":   "default_rate: \"0.05\"\nrates: {}\n",
		"missing":       "countries: {US: \"0.1\"}\n",
		"not numeric":   "default_rate: abc\n",
		"out of range":  "default_rate: \"1.5\"\n",
		"bad country":   "default_rate: \"0.05\"\ncountries: {USA: \"0.1\"}\n",
		"country value": "default_rate: \"0.05\"\ncountries: {US: \"x\"}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTaxRates([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTaxRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_rate: \"0.05\"\n"), 0o600))
	rates, err := LoadTaxRates(path)
	require.NoError(t, err)
	assert.Empty(t, rates.ByCountry)

	_, err = LoadTaxRates(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
