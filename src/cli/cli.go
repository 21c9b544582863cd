// Package cli holds the subcommands of the taxdecl binary.
package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/patrickmn/go-cache"
	"github.com/username/taxfolio/declaration/src/config"
	"github.com/username/taxfolio/declaration/src/database"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/parsers"
	"github.com/username/taxfolio/declaration/src/processors"
	"github.com/username/taxfolio/declaration/src/rates"
	"github.com/username/taxfolio/declaration/src/services"
	"github.com/username/taxfolio/declaration/src/utils"
)

// Register adds all commands to c.
func Register(c *subcommands.Commander) {
	c.Register(&reportCmd{}, "reports")

	c.Register(&serveCmd{}, "server")
	c.Register(&tokenCmd{}, "server")

	c.Register(&importRatesCmd{}, "rates")
	c.Register(&fetchRatesCmd{}, "rates")
}

// engine is the wired report pipeline shared by serve and report.
type engine struct {
	db      *sql.DB
	service services.ReportService
}

// newEngine builds the rate chain, the processors and the report service
// from cfg. Callers must Close the engine.
func newEngine(cfg *config.AppConfig) (*engine, error) {
	declared, err := config.LoadTaxRates(cfg.TaxRatesPath)
	if err != nil {
		return nil, err
	}

	var chain []rates.Provider
	var db *sql.DB
	if cfg.DatabasePath != "" {
		db, err = database.InitDB(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		repo := database.NewRateRepository(db)
		chain = append(chain, rates.NewStoreProvider(repo, cfg.RatesBaseCurrency, cfg.LocalCurrency, cfg.RateLookbackDays))
	}
	obs, err := rates.LoadHistoricalFile(cfg.HistoricalDataPath, cfg.RatesJSONPath)
	switch {
	case err == nil:
		chain = append(chain, rates.NewHistoricalProvider(obs, cfg.RatesBaseCurrency, cfg.LocalCurrency, cfg.RateLookbackDays))
	case errors.Is(err, fs.ErrNotExist):
		logger.L.Warn("Historical exchange rate file not found, relying on the rate store", "path", cfg.HistoricalDataPath)
	default:
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	provider := rates.NewCachedProvider(rates.Fallback(chain...), rates.DefaultRateCacheExpiration)

	var countries processors.CountryResolver
	if dir, err := utils.LoadCountryDirectory(cfg.CountryDataPath); err != nil {
		logger.L.Warn("Country data unavailable, dividend countries come from the ISIN prefix only", "error", err)
	} else {
		countries = dir
	}

	converter := processors.NewConverter(provider, cfg.LocalCurrency, cfg.ReportingCurrency)
	validator := processors.NewActivityValidator()
	ttl := cfg.ReportCacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	service := services.NewReportService(
		parsers.DefaultRegistry(),
		processors.NewStockProcessor(converter, validator),
		processors.NewDividendProcessor(converter, validator, declared, countries),
		cfg.LocalCurrency, cfg.ReportingCurrency,
		cache.New(ttl, 2*ttl),
	)
	return &engine{db: db, service: service}, nil
}

func (e *engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// openStore opens the rate database named by cfg.
func openStore(cfg *config.AppConfig) (*sql.DB, *database.RateRepository, error) {
	if cfg.DatabasePath == "" {
		return nil, nil, errors.New("DATABASE_PATH is not set")
	}
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return db, database.NewRateRepository(db), nil
}

// printMarkdown renders md for the terminal, or prints it as is when it
// cannot be rendered.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	logger.L.Debug("Markdown rendering failed", "error", err)
	fmt.Print(md)
}

// exitStatus maps a pipeline error to an exit status. Bad input is a usage error.
func exitStatus(err error) subcommands.ExitStatus {
	switch {
	case err == nil:
		return subcommands.ExitSuccess
	case errors.Is(err, services.ErrUnsupportedParser),
		errors.Is(err, processors.ErrDuplicateSource):
		return subcommands.ExitUsageError
	default:
		return subcommands.ExitFailure
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
