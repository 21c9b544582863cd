package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	LogLevel     string
	DatabasePath string

	// Exchange rate sources.
	HistoricalDataPath string
	RatesJSONPath      string
	RatesBaseCurrency  string
	RateLookbackDays   int
	ECBAPIURL          string

	CountryDataPath string
	TaxRatesPath    string

	LocalCurrency     string
	ReportingCurrency string

	MaxUploadSizeBytes int64
	ReportCacheTTL     time.Duration

	// API access. An empty JWTSecret disables authentication.
	JWTSecret         string
	AccessTokenExpiry time.Duration
	RateLimitRPS      int
	RateLimitBurst    int
}

var Cfg *AppConfig

// LoadConfig loads .env (if present) and the environment into Cfg.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = FromEnv()
	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Local=%s, Reporting=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.LocalCurrency, Cfg.ReportingCurrency)
}

// FromEnv builds a configuration from environment variables only.
func FromEnv() *AppConfig {
	maxUpload := getEnvAsInt("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024)
	if maxUpload <= 0 {
		log.Printf("WARNING: MAX_UPLOAD_SIZE_BYTES must be positive, using default 10MiB")
		maxUpload = 10 * 1024 * 1024
	}

	return &AppConfig{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabasePath:       getEnv("DATABASE_PATH", "./taxdecl.db"),
		HistoricalDataPath: getEnv("HISTORICAL_DATA_PATH", "data/historicalExchangeRate.json"),
		RatesJSONPath:      getEnv("RATES_JSON_PATH", "$.root.Obs"),
		RatesBaseCurrency:  strings.ToUpper(getEnv("RATES_BASE_CURRENCY", "EUR")),
		RateLookbackDays:   getEnvAsInt("RATE_LOOKBACK_DAYS", 7),
		ECBAPIURL:          getEnv("ECB_API_URL", "https://data-api.ecb.europa.eu/service/data/EXR"),
		CountryDataPath:    getEnv("COUNTRY_DATA_PATH", "data/country.json"),
		TaxRatesPath:       getEnv("TAX_RATES_PATH", "data/tax_rates.yaml"),
		LocalCurrency:      strings.ToUpper(getEnv("LOCAL_CURRENCY", "BGN")),
		ReportingCurrency:  strings.ToUpper(getEnv("REPORTING_CURRENCY", "USD")),
		MaxUploadSizeBytes: int64(maxUpload),
		ReportCacheTTL:     getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
		RateLimitRPS:       getEnvAsInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
