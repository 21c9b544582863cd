package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/taxfolio/declaration/src/export"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/parsers"
	"github.com/username/taxfolio/declaration/src/parsers/csv"
	mock_parsers "github.com/username/taxfolio/declaration/src/parsers/mocks"
	"github.com/username/taxfolio/declaration/src/processors"
	"github.com/username/taxfolio/declaration/src/rates"
)

const statement = `type,security_id,date,quantity,price,currency,amount,withholding_tax
BUY,AAPL,2024-01-01,10,100,USD,,
BUY,AAPL,2024-01-02,10,120,USD,,
SELL,AAPL,2024-01-03,15,150,USD,,
DIVIDEND,US0378331005,2024-01-04,,,USD,100,10
`

const otherStatement = `type,security_id,date,quantity,price,currency
BUY,MSFT,2024-02-01,4,300,USD
SELL,MSFT,2024-02-05,4,250,USD
`

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T, registry *parsers.Registry) ReportService {
	t.Helper()
	conv := processors.NewConverter(rates.Static{}, "USD", "USD")
	declared := models.DeclaredRates{Default: dec("0.15")}
	return NewReportService(registry,
		processors.NewStockProcessor(conv, nil),
		processors.NewDividendProcessor(conv, nil, declared, nil),
		"usd", "usd", nil)
}

func csvRegistry(t *testing.T, names ...string) *parsers.Registry {
	t.Helper()
	r := parsers.NewRegistry()
	for _, n := range names {
		require.NoError(t, r.Register(n, func() parsers.Parser { return csv.NewParser() }))
	}
	return r
}

func source(name string, docs ...string) SourceInput {
	in := SourceInput{Parser: name}
	for _, d := range docs {
		in.Files = append(in.Files, strings.NewReader(d))
	}
	return in
}

func TestGenerate_Combined(t *testing.T) {
	svc := newService(t, csvRegistry(t, "csv"))

	report, err := svc.Generate(context.Background(), ReportRequest{Sources: []SourceInput{source("csv", statement)}, Combine: true})
	require.NoError(t, err)

	assert.Equal(t, []string{models.CombinedKey}, report.FigureKeys)
	f := report.Figures[models.CombinedKey]
	require.Len(t, f.Sales, 1)
	assert.True(t, dec("1600").Equal(f.Sales[0].CostBasis))
	assert.True(t, dec("2250").Equal(f.Sales[0].SaleProceeds))
	assert.True(t, dec("650").Equal(f.Sales[0].Profit))
	assert.True(t, f.Sales[0].Loss.IsZero())
	assert.True(t, dec("650").Equal(f.WinLoss))

	require.Len(t, f.RemainingPurchases["AAPL"], 1)
	assert.True(t, dec("5").Equal(f.RemainingPurchases["AAPL"][0].Quantity))
	assert.True(t, dec("120").Equal(f.RemainingPurchases["AAPL"][0].UnitCost))

	require.Len(t, f.DividendTaxes, 1)
	assert.Equal(t, "US", f.DividendTaxes[0].Country)
	assert.True(t, dec("5").Equal(f.DividendTaxes[0].TaxOwedInCurrency))

	stage, err := svc.RunStage(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, StageMerged, stage)

	got, err := svc.GetReport(report.RunID)
	require.NoError(t, err)
	assert.Same(t, report, got)
}

func TestGenerate_CachedByInput(t *testing.T) {
	svc := newService(t, csvRegistry(t, "csv"))
	req := func() ReportRequest {
		return ReportRequest{Sources: []SourceInput{source("csv", statement)}, Combine: true}
	}
	first, err := svc.Generate(context.Background(), req())
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, first.RunID, second.RunID)

	perSource, err := svc.Generate(context.Background(), ReportRequest{Sources: []SourceInput{source("csv", statement)}})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, perSource.RunID)
}

func TestGenerate_PerSourceTotalsMatchCombined(t *testing.T) {
	svc := newService(t, csvRegistry(t, "a", "b"))
	sources := func() []SourceInput {
		return []SourceInput{source("a", statement), source("b", otherStatement)}
	}

	perSource, err := svc.Generate(context.Background(), ReportRequest{Sources: sources()})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, perSource.FigureKeys)
	stage, _ := svc.RunStage(perSource.RunID)
	assert.Equal(t, StageDividendsAggregated, stage)

	combined, err := svc.Generate(context.Background(), ReportRequest{Sources: sources(), Combine: true})
	require.NoError(t, err)

	sum := perSource.Figures["a"].WinLoss.Add(perSource.Figures["b"].WinLoss)
	assert.True(t, sum.Equal(combined.Figures[models.CombinedKey].WinLoss), sum.String())
	// 650 profit on AAPL, 200 loss on MSFT
	assert.True(t, dec("450").Equal(sum))

	all := combined.Figures[models.CombinedKey]
	assert.Equal(t, "AAPL", all.Sales[0].SecurityID)
	assert.Equal(t, "MSFT", all.Sales[1].SecurityID)
	assert.True(t, dec("200").Equal(all.Sales[1].Loss))
	assert.Empty(t, perSource.Figures["b"].DividendTaxes)
}

func TestGenerate_MultipleFilesPerSource(t *testing.T) {
	svc := newService(t, csvRegistry(t, "csv"))
	report, err := svc.Generate(context.Background(), ReportRequest{
		Sources: []SourceInput{source("csv", statement, otherStatement)},
		Combine: true,
	})
	require.NoError(t, err)
	assert.Len(t, report.Statements["csv"], 6)
	assert.Len(t, report.Figures[models.CombinedKey].Sales, 2)
}

func TestGenerate_DegradedMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	parser := mock_parsers.NewMockParser(ctrl)

	records := []models.ActivityRecord{
		{Type: models.ActivitySell, SecurityID: "AAPL", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Quantity: dec("5"), UnitPrice: dec("1"), Currency: "USD"},
		{Type: "OPTION", SecurityID: "AAPL C150", Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Currency: "USD"},
		{Type: models.ActivityDividend, SecurityID: "US0378331005", Date: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Amount: dec("100"), WithholdingTax: dec("10"), Currency: "USD"},
	}
	parser.EXPECT().Parse(gomock.Any()).Return(records, nil)
	parser.EXPECT().UnsupportedActivityTypes(records).Return([]string{"OPTION"})

	registry := parsers.NewRegistry()
	require.NoError(t, registry.Register("broker", func() parsers.Parser { return parser }))
	svc := newService(t, registry)

	// the sell has no matching buy, which would fail if sales were computed
	report, err := svc.Generate(context.Background(), ReportRequest{Sources: []SourceInput{source("broker", "x")}, Combine: true})
	require.NoError(t, err)
	assert.True(t, report.SalesSkipped)
	assert.Equal(t, map[string][]string{"broker": {"OPTION"}}, report.UnsupportedActivityTypes)
	f := report.Figures[models.CombinedKey]
	assert.Empty(t, f.Sales)
	assert.Empty(t, f.RemainingPurchases)
	require.Len(t, f.DividendTaxes, 1)
	assert.True(t, dec("5").Equal(f.DividendTaxes[0].TaxOwed))

	var buf bytes.Buffer
	err = svc.Export(report.RunID, export.TableSales, "", &buf)
	assert.True(t, errors.Is(err, export.ErrTableSkipped))
}

func TestGenerate_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mock_parsers.NewMockParser(ctrl)
	failing.EXPECT().Parse(gomock.Any()).Return(nil, errors.New("broken file")).AnyTimes()
	empty := mock_parsers.NewMockParser(ctrl)
	empty.EXPECT().Parse(gomock.Any()).Return(nil, nil).AnyTimes()

	registry := csvRegistry(t, "csv")
	require.NoError(t, registry.Register("failing", func() parsers.Parser { return failing }))
	require.NoError(t, registry.Register("empty", func() parsers.Parser { return empty }))
	svc := newService(t, registry)

	tests := []struct {
		name    string
		sources []SourceInput
		want    error
	}{
		{"no sources", nil, ErrNoActivities},
		{"unknown parser", []SourceInput{source("revolut", statement)}, ErrUnsupportedParser},
		{"duplicate source", []SourceInput{source("csv", statement), source("CSV", statement)}, processors.ErrDuplicateSource},
		{"parse failure", []SourceInput{source("failing", "x")}, ErrParsingFailed},
		{"empty source", []SourceInput{source("empty", "x")}, ErrNoActivities},
		{"sell without buy", []SourceInput{source("csv", "type,security_id,date,quantity,price,currency\nSELL,AAPL,2024-01-03,15,150,USD\n")}, ErrProcessingFailed},
		{"missing rate", []SourceInput{source("csv", "type,security_id,date,quantity,price,currency\nBUY,SAP,2024-01-03,1,150,EUR\n")}, processors.ErrMissingRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := svc.Generate(context.Background(), ReportRequest{Sources: tt.sources, Combine: true})
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestGenerate_InsufficientLotsKeepsCause(t *testing.T) {
	svc := newService(t, csvRegistry(t, "csv"))
	_, err := svc.Generate(context.Background(), ReportRequest{Sources: []SourceInput{
		source("csv", "type,security_id,date,quantity,price,currency\nBUY,AAPL,2024-01-01,5,100,USD\nSELL,AAPL,2024-01-03,10,150,USD\n"),
	}})
	var lotsErr *processors.InsufficientLotsError
	require.True(t, errors.As(err, &lotsErr))
	assert.Equal(t, "AAPL", lotsErr.SecurityID)
}

func TestGenerate_ReadFailure(t *testing.T) {
	svc := newService(t, csvRegistry(t, "csv"))
	_, err := svc.Generate(context.Background(), ReportRequest{Sources: []SourceInput{
		{Parser: "csv", Files: []io.Reader{errReader{}}},
	}})
	assert.True(t, errors.Is(err, ErrParsingFailed))
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestExport(t *testing.T) {
	svc := newService(t, csvRegistry(t, "csv"))
	report, err := svc.Generate(context.Background(), ReportRequest{Sources: []SourceInput{source("csv", statement)}, Combine: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(report.RunID, export.TableDividendTaxes, "", &buf))
	assert.Contains(t, buf.String(), "US,,0.15,100.00,10.00,5.00")

	stage, _ := svc.RunStage(report.RunID)
	assert.Equal(t, StageExported, stage)

	buf.Reset()
	require.NoError(t, svc.Export(report.RunID, export.Workbook, "", &buf))
	assert.NotZero(t, buf.Len())

	buf.Reset()
	require.NoError(t, svc.Export(report.RunID, export.Declaration, "", &buf))
	assert.Contains(t, buf.String(), `<country code="US" declared_rate="0.15">`)

	assert.True(t, errors.Is(svc.Export("missing", export.TableSales, "", &buf), ErrReportNotFound))
	assert.True(t, errors.Is(svc.Export(report.RunID, "nope", "", &buf), export.ErrUnknownTable))

	_, err = svc.GetReport("missing")
	assert.True(t, errors.Is(err, ErrReportNotFound))
	assert.Equal(t, []string{"csv"}, svc.Parsers())
}

func TestRunAdvance(t *testing.T) {
	run := NewRun()
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StageInit, run.Stage())

	require.NoError(t, run.Advance(StageDividendsAggregated))
	assert.True(t, errors.Is(run.Advance(StageSalesMatched), ErrInvalidTransition))
	assert.True(t, errors.Is(run.Advance(StageDividendsAggregated), ErrInvalidTransition))
	require.NoError(t, run.Advance(StageExported))
	require.NoError(t, run.Advance(StageExported))
	assert.True(t, errors.Is(run.Advance(Stage(42)), ErrInvalidTransition))
	assert.Equal(t, "exported", run.Stage().String())
}
