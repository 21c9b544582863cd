package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/username/taxfolio/declaration/src/config"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/rates"
	"github.com/username/taxfolio/declaration/src/utils"
)

type importRatesCmd struct {
	file     string
	jsonPath string
}

func (*importRatesCmd) Name() string     { return "import-rates" }
func (*importRatesCmd) Synopsis() string { return "load a historical rate file into the rate store" }
func (*importRatesCmd) Usage() string {
	return `taxdecl import-rates [-f <file>] [-jsonpath <expr>]

  Copies base currency observations from a JSON file into the database.
`
}

func (c *importRatesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "Rate file (default HISTORICAL_DATA_PATH)")
	f.StringVar(&c.jsonPath, "jsonpath", "", "JSONPath of the observation list (default RATES_JSON_PATH)")
}

func (c *importRatesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := config.Cfg
	file, path := c.file, c.jsonPath
	if file == "" {
		file = cfg.HistoricalDataPath
	}
	if path == "" {
		path = cfg.RatesJSONPath
	}

	obs, err := rates.LoadHistoricalFile(file, path)
	if err != nil {
		fail("Error loading rates: %v", err)
		return subcommands.ExitFailure
	}
	db, repo, err := openStore(cfg)
	if err != nil {
		fail("Error opening rate store: %v", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	n, err := repo.Upsert(ctx, "file", obs)
	if err != nil {
		fail("Error storing rates: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("imported %d observations from %s\n", n, file)
	return subcommands.ExitSuccess
}

type fetchRatesCmd struct {
	currencies string
	from       string
	to         string
	interval   time.Duration
}

func (*fetchRatesCmd) Name() string     { return "fetch-rates" }
func (*fetchRatesCmd) Synopsis() string { return "download ECB reference rates into the rate store" }
func (*fetchRatesCmd) Usage() string {
	return `taxdecl fetch-rates -c <ccy,...> [-from <date>] [-to <date>]

  Downloads daily EUR reference rates from the ECB data API. Rates are quoted
  per EUR, so RATES_BASE_CURRENCY must be EUR for the store to use them.
`
}

func (c *fetchRatesCmd) SetFlags(f *flag.FlagSet) {
	lastYear := time.Now().Year() - 1
	f.StringVar(&c.currencies, "c", "USD", "Comma separated currencies")
	f.StringVar(&c.from, "from", fmt.Sprintf("%d-01-01", lastYear), "First day")
	f.StringVar(&c.to, "to", time.Now().Format(utils.DefaultDateFormat), "Last day")
	f.DurationVar(&c.interval, "interval", time.Second, "Minimum delay between requests")
}

func (c *fetchRatesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := config.Cfg
	from, err := utils.ParseDate(c.from)
	if err != nil {
		fail("Error parsing -from: %v", err)
		return subcommands.ExitUsageError
	}
	to, err := utils.ParseDate(c.to)
	if err != nil {
		fail("Error parsing -to: %v", err)
		return subcommands.ExitUsageError
	}
	if to.Before(from) {
		fail("-to is before -from")
		return subcommands.ExitUsageError
	}
	currencies := splitList(strings.ToUpper(c.currencies))
	if len(currencies) == 0 {
		fail("no currency given")
		return subcommands.ExitUsageError
	}
	if cfg.RatesBaseCurrency != "EUR" {
		logger.L.Warn("ECB rates are EUR based but RATES_BASE_CURRENCY differs", "base", cfg.RatesBaseCurrency)
	}

	db, repo, err := openStore(cfg)
	if err != nil {
		fail("Error opening rate store: %v", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	client := rates.NewECBClient(cfg.ECBAPIURL, c.interval)
	total := 0
	for _, ccy := range currencies {
		if ccy == "EUR" {
			continue
		}
		obs, err := client.Fetch(ctx, ccy, from, to)
		if err != nil {
			fail("Error fetching %s: %v", ccy, err)
			return subcommands.ExitFailure
		}
		n, err := repo.Upsert(ctx, "ecb", obs)
		if err != nil {
			fail("Error storing %s: %v", ccy, err)
			return subcommands.ExitFailure
		}
		logger.L.Info("ECB rates stored", "currency", ccy, "observations", n)
		total += n
	}
	fmt.Printf("stored %d observations for %s\n", total, strings.Join(currencies, ", "))
	return subcommands.ExitSuccess
}
