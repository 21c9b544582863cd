package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/utils"
)

// Markdown renders a summary of the report: win/loss, open positions and the
// dividend tax reconciliation of every figure set.
func Markdown(report *models.Report) string {
	var b strings.Builder
	local, rep := report.LocalCurrency, report.ReportingCurrency

	fmt.Fprint(&b, "# Tax Declaration Report\n\n")
	fmt.Fprintf(&b, "Run `%s`, generated %s. Sources: %s.\n\n",
		report.RunID, report.GeneratedAt.Format("2006-01-02 15:04 MST"), strings.Join(report.Sources, ", "))

	if report.SalesSkipped {
		sources := make([]string, 0, len(report.UnsupportedActivityTypes))
		for s := range report.UnsupportedActivityTypes {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		fmt.Fprint(&b, "> **Warning:** statements contain unsupported activity types, only dividend figures were computed.\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "> - %s: %s\n", s, strings.Join(report.UnsupportedActivityTypes[s], ", "))
		}
		fmt.Fprintln(&b)
	}

	for _, key := range report.FigureKeys {
		f := report.Figures[key]
		if f == nil {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", titleFor(key))

		if !report.SalesSkipped {
			open := 0
			for _, lots := range f.RemainingPurchases {
				open += len(lots)
			}
			fmt.Fprintln(&b, "| | "+local+" | "+rep+" |")
			fmt.Fprintln(&b, "|:---|---:|---:|")
			fmt.Fprintf(&b, "| Sales | %d | |\n", len(f.Sales))
			fmt.Fprintf(&b, "| Win/loss | %s | %s |\n", utils.FormatAmount(f.WinLoss, local), utils.FormatAmount(f.WinLossInCurrency, rep))
			fmt.Fprintf(&b, "| Open lots | %d | |\n\n", open)
		}

		fmt.Fprint(&b, "### Dividend Taxes\n\n")
		if len(f.DividendTaxes) == 0 {
			fmt.Fprint(&b, "No dividends.\n\n")
			continue
		}
		fmt.Fprintf(&b, "| Country | Rate | Gross %[1]s | Paid %[1]s | Owed %[1]s | Gross %[2]s | Paid %[2]s | Owed %[2]s |\n", local, rep)
		fmt.Fprintln(&b, "|:---|---:|---:|---:|---:|---:|---:|---:|")
		for _, t := range f.DividendTaxes {
			country := t.Country
			if t.CountryName != "" {
				country = fmt.Sprintf("%s (%s)", t.Country, t.CountryName)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
				country, t.DeclaredRate.String(),
				utils.FormatAmount(t.GrossTotal, local), utils.FormatAmount(t.TaxPaid, local), utils.FormatAmount(t.TaxOwed, local),
				utils.FormatAmount(t.GrossTotalInCurrency, rep), utils.FormatAmount(t.TaxPaidInCurrency, rep), utils.FormatAmount(t.TaxOwedInCurrency, rep))
		}
		fmt.Fprintln(&b)
	}
	return b.String()
}

func titleFor(key string) string {
	if key == models.CombinedKey {
		return "All Sources"
	}
	return "Source " + key
}
