package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/security/validation"
	"github.com/username/taxfolio/declaration/src/utils"
)

// Declaration names the XML export of one figure set.
const Declaration = "xml"

// DeclarationDocument is the XML form of the figures a tax return needs:
// dividend taxes per country, matched sales and the lots still held.
// Sales and holdings are absent for dividends-only reports.
type DeclarationDocument struct {
	XMLName           xml.Name              `xml:"declaration"`
	RunID             string                `xml:"run_id,attr"`
	Figures           string                `xml:"figures,attr"`
	GeneratedAt       string                `xml:"generated_at,attr"`
	LocalCurrency     string                `xml:"local_currency,attr"`
	ReportingCurrency string                `xml:"reporting_currency,attr"`
	DividendTaxes     []DeclaredDividendTax `xml:"dividend_taxes>country"`
	Sales             *DeclaredSales        `xml:"sales,omitempty"`
	Holdings          []DeclaredHolding     `xml:"remaining_purchases>lot,omitempty"`
}

type DeclaredDividendTax struct {
	Code         string `xml:"code,attr"`
	Name         string `xml:"name,attr,omitempty"`
	DeclaredRate string `xml:"declared_rate,attr"`
	Gross        string `xml:"gross"`
	TaxPaid      string `xml:"tax_paid"`
	TaxOwed      string `xml:"tax_owed"`
}

type DeclaredSales struct {
	WinLoss           string         `xml:"win_loss,attr"`
	WinLossInCurrency string         `xml:"win_loss_in_currency,attr"`
	Sales             []DeclaredSale `xml:"sale"`
}

type DeclaredSale struct {
	SecurityID   string `xml:"security_id,attr"`
	Source       string `xml:"source,attr"`
	Date         string `xml:"date,attr"`
	Quantity     string `xml:"quantity"`
	SaleProceeds string `xml:"sale_proceeds"`
	CostBasis    string `xml:"cost_basis"`
	Profit       string `xml:"profit"`
	Loss         string `xml:"loss"`
}

type DeclaredHolding struct {
	SecurityID string `xml:"security_id,attr"`
	Source     string `xml:"source,attr"`
	Date       string `xml:"date,attr"`
	Quantity   string `xml:"quantity"`
	Currency   string `xml:"currency"`
	CostNative string `xml:"cost_native"`
	Cost       string `xml:"cost"`
}

// BuildDeclaration assembles the declaration of figure set key. An empty key
// selects the first figure set. Amounts are in the local currency.
func BuildDeclaration(report *models.Report, key string) (DeclarationDocument, error) {
	if key == "" && len(report.FigureKeys) > 0 {
		key = report.FigureKeys[0]
	}
	figures, ok := report.Figures[key]
	if !ok {
		return DeclarationDocument{}, fmt.Errorf("%w: %s", ErrUnknownFigures, key)
	}
	local, rep := report.LocalCurrency, report.ReportingCurrency

	doc := DeclarationDocument{
		RunID:             report.RunID,
		Figures:           key,
		GeneratedAt:       report.GeneratedAt.UTC().Format(time.RFC3339),
		LocalCurrency:     local,
		ReportingCurrency: rep,
	}
	for _, d := range figures.DividendTaxes {
		doc.DividendTaxes = append(doc.DividendTaxes, DeclaredDividendTax{
			Code:         d.Country,
			Name:         d.CountryName,
			DeclaredRate: d.DeclaredRate.String(),
			Gross:        utils.FormatAmount(d.GrossTotal, local),
			TaxPaid:      utils.FormatAmount(d.TaxPaid, local),
			TaxOwed:      utils.FormatAmount(d.TaxOwed, local),
		})
	}
	if report.SalesSkipped {
		return doc, nil
	}

	doc.Sales = &DeclaredSales{
		WinLoss:           utils.FormatAmount(figures.WinLoss, local),
		WinLossInCurrency: utils.FormatAmount(figures.WinLossInCurrency, rep),
	}
	for _, s := range figures.Sales {
		doc.Sales.Sales = append(doc.Sales.Sales, DeclaredSale{
			SecurityID:   validation.CleanText(s.SecurityID),
			Source:       s.Source,
			Date:         s.SaleDate.Format(utils.DefaultDateFormat),
			Quantity:     s.Quantity.String(),
			SaleProceeds: utils.FormatAmount(s.SaleProceeds, local),
			CostBasis:    utils.FormatAmount(s.CostBasis, local),
			Profit:       utils.FormatAmount(s.Profit, local),
			Loss:         utils.FormatAmount(s.Loss, local),
		})
	}

	ids := make([]string, 0, len(figures.RemainingPurchases))
	for id := range figures.RemainingPurchases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, p := range figures.RemainingPurchases[id] {
			doc.Holdings = append(doc.Holdings, DeclaredHolding{
				SecurityID: validation.CleanText(p.SecurityID),
				Source:     p.Source,
				Date:       p.Date.Format(utils.DefaultDateFormat),
				Quantity:   p.Quantity.String(),
				Currency:   p.Currency,
				CostNative: utils.FormatAmount(p.CostNative, p.Currency),
				Cost:       utils.FormatAmount(p.Cost, local),
			})
		}
	}
	return doc, nil
}

// WriteDeclaration writes the declaration of figure set key as indented XML.
func WriteDeclaration(w io.Writer, report *models.Report, key string) error {
	doc, err := BuildDeclaration(report, key)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding declaration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
