package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/taxfolio/declaration/src/export"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/parsers"
	"github.com/username/taxfolio/declaration/src/processors"
	"golang.org/x/sync/errgroup"
)

const (
	// ckInput maps a hash of the request to the run that computed it.
	ckInput = "input_%s"
	ckRun   = "run_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type runEntry struct {
	run    *Run
	report *models.Report
}

type parsedSource struct {
	name        string
	records     []models.ActivityRecord
	unsupported []string
}

type reportServiceImpl struct {
	registry    *parsers.Registry
	sales       processors.SaleMatcher
	dividends   processors.DividendAggregator
	local       string
	reporting   string
	reportCache *cache.Cache
}

func NewReportService(
	registry *parsers.Registry,
	sales processors.SaleMatcher,
	dividends processors.DividendAggregator,
	localCurrency, reportingCurrency string,
	reportCache *cache.Cache,
) ReportService {
	if reportCache == nil {
		reportCache = cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	return &reportServiceImpl{
		registry:    registry,
		sales:       sales,
		dividends:   dividends,
		local:       strings.ToUpper(localCurrency),
		reporting:   strings.ToUpper(reportingCurrency),
		reportCache: reportCache,
	}
}

func (s *reportServiceImpl) Parsers() []string {
	return s.registry.Names()
}

// Generate parses every source and computes its figures. Either the whole
// report is produced or an error is returned, never a partial result.
func (s *reportServiceImpl) Generate(ctx context.Context, req ReportRequest) (*models.Report, error) {
	startTime := time.Now()
	if len(req.Sources) == 0 {
		return nil, fmt.Errorf("%w: no sources given", ErrNoActivities)
	}

	names := make([]string, len(req.Sources))
	for i, src := range req.Sources {
		names[i] = strings.ToLower(strings.TrimSpace(src.Parser))
	}
	if unsupported := s.registry.Unsupported(names); len(unsupported) > 0 {
		logger.L.Error("Unsupported parsers requested", "parsers", unsupported, "supported", s.registry.Names())
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedParser, strings.Join(unsupported, ", "))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("%w: %s", processors.ErrDuplicateSource, n)
		}
		seen[n] = true
	}

	contents, inputKey, err := readSources(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	if runID, found := s.reportCache.Get(fmt.Sprintf(ckInput, inputKey)); found {
		if report, err := s.GetReport(runID.(string)); err == nil {
			logger.L.Info("Report cache hit", "runID", report.RunID)
			return report, nil
		}
	}

	run := NewRun()
	logger.L.Info("Report run START", "runID", run.ID, "sources", names, "combine", req.Combine)

	sources := make([]parsedSource, len(names))
	for i, name := range names {
		parsed, err := s.parseSource(name, contents[i])
		if err != nil {
			return nil, err
		}
		sources[i] = parsed
	}

	report := &models.Report{
		RunID:             run.ID,
		GeneratedAt:       run.StartedAt,
		LocalCurrency:     s.local,
		ReportingCurrency: s.reporting,
		Combined:          req.Combine,
		Sources:           names,
		Figures:           make(map[string]*models.Figures),
		Statements:        make(map[string][]models.ActivityRecord, len(sources)),
	}
	for _, src := range sources {
		report.Statements[src.name] = src.records
		if len(src.unsupported) > 0 {
			if report.UnsupportedActivityTypes == nil {
				report.UnsupportedActivityTypes = make(map[string][]string)
			}
			report.UnsupportedActivityTypes[src.name] = src.unsupported
		}
	}
	report.SalesSkipped = len(report.UnsupportedActivityTypes) > 0

	sales := processors.NewBySource[[]models.MatchedSale]()
	remaining := processors.NewBySource[map[string][]models.RemainingPurchase]()
	if !report.SalesSkipped {
		salesList, remainingList, err := s.matchSales(ctx, run, sources)
		if err != nil {
			return nil, err
		}
		for i, src := range sources {
			_ = sales.Add(src.name, salesList[i])
			_ = remaining.Add(src.name, remainingList[i])
		}
	}

	dividendsList, err := s.aggregateDividends(ctx, sources)
	if err != nil {
		return nil, err
	}
	dividends := processors.NewBySource[[]models.DividendRecord]()
	for i, src := range sources {
		_ = dividends.Add(src.name, dividendsList[i])
	}
	if err := run.Advance(StageDividendsAggregated); err != nil {
		return nil, err
	}

	if req.Combine {
		report.FigureKeys = []string{models.CombinedKey}
		report.Figures[models.CombinedKey] = s.figures(
			processors.MergeLists(sales),
			processors.MergeGroups(remaining),
			processors.MergeLists(dividends),
		)
		if err := run.Advance(StageMerged); err != nil {
			return nil, err
		}
	} else {
		for _, name := range dividends.Sources() {
			saleList, _ := sales.Get(name)
			groups, _ := remaining.Get(name)
			divs, _ := dividends.Get(name)
			report.FigureKeys = append(report.FigureKeys, name)
			report.Figures[name] = s.figures(saleList, groups, divs)
		}
	}

	for _, key := range report.FigureKeys {
		f := report.Figures[key]
		if !report.SalesSkipped {
			logger.L.Info("Profit/Loss", "figures", key,
				"winLoss", f.WinLoss.String(), "currency", s.local,
				"winLossInCurrency", f.WinLossInCurrency.String(), "reportingCurrency", s.reporting)
		}
	}
	if report.SalesSkipped {
		logger.L.Warn("Statements contain unsupported activity types. Only dividends related data was calculated.",
			"runID", run.ID, "unsupported", report.UnsupportedActivityTypes)
	}

	s.reportCache.Set(fmt.Sprintf(ckRun, run.ID), &runEntry{run: run, report: report}, cache.DefaultExpiration)
	s.reportCache.Set(fmt.Sprintf(ckInput, inputKey), run.ID, cache.DefaultExpiration)
	logger.L.Info("Report run END", "runID", run.ID, "stage", run.Stage().String(), "duration", time.Since(startTime))
	return report, nil
}

// readSources loads every statement in memory and hashes the request.
func readSources(req ReportRequest) ([][][]byte, string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "combine=%t;", req.Combine)
	contents := make([][][]byte, len(req.Sources))
	for i, src := range req.Sources {
		fmt.Fprintf(h, "source=%s;", strings.ToLower(strings.TrimSpace(src.Parser)))
		for _, f := range src.Files {
			data, err := io.ReadAll(f)
			if err != nil {
				return nil, "", fmt.Errorf("reading %s statement: %w", src.Parser, err)
			}
			fmt.Fprintf(h, "file=%d;", len(data))
			h.Write(data)
			contents[i] = append(contents[i], data)
		}
	}
	return contents, hex.EncodeToString(h.Sum(nil)), nil
}

func (s *reportServiceImpl) parseSource(name string, files [][]byte) (parsedSource, error) {
	parser, err := s.registry.Get(name)
	if err != nil {
		return parsedSource{}, err
	}
	var records []models.ActivityRecord
	for i, data := range files {
		recs, err := parser.Parse(bytes.NewReader(data))
		if err != nil {
			logger.L.Warn("Statement parsing failed", "parser", name, "file", i, "error", err)
			return parsedSource{}, fmt.Errorf("%w: %s file %d: %v", ErrParsingFailed, name, i+1, err)
		}
		records = append(records, recs...)
	}
	if len(records) == 0 {
		logger.L.Error("No activities found. Please, check your statement files.", "parser", name)
		return parsedSource{}, fmt.Errorf("%w: parser %s", ErrNoActivities, name)
	}
	logger.L.Info("Statements parsed", "parser", name, "files", len(files), "records", len(records))
	return parsedSource{name: name, records: records, unsupported: parser.UnsupportedActivityTypes(records)}, nil
}

// matchSales runs lot matching for every source in parallel. Each source has
// its own inventory.
func (s *reportServiceImpl) matchSales(ctx context.Context, run *Run, sources []parsedSource) ([][]models.MatchedSale, []map[string][]models.RemainingPurchase, error) {
	salesList := make([][]models.MatchedSale, len(sources))
	remainingList := make([]map[string][]models.RemainingPurchase, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sales, inv, err := s.sales.ProcessSales(src.name, src.records)
			if err != nil {
				return fmt.Errorf("%w: source %s: %w", ErrProcessingFailed, src.name, err)
			}
			remaining, err := s.sales.RemainingPurchases(inv)
			if err != nil {
				return fmt.Errorf("%w: remaining purchases of %s: %w", ErrProcessingFailed, src.name, err)
			}
			salesList[i] = sales
			remainingList[i] = remaining
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.L.Error("Sales matching failed", "runID", run.ID, "error", err)
		return nil, nil, err
	}
	if err := run.Advance(StageLotsPopulated); err != nil {
		return nil, nil, err
	}
	if err := run.Advance(StageSalesMatched); err != nil {
		return nil, nil, err
	}
	return salesList, remainingList, nil
}

func (s *reportServiceImpl) aggregateDividends(ctx context.Context, sources []parsedSource) ([][]models.DividendRecord, error) {
	out := make([][]models.DividendRecord, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			divs, err := s.dividends.CalculateDividends(src.name, src.records)
			if err != nil {
				return fmt.Errorf("%w: dividends of %s: %w", ErrProcessingFailed, src.name, err)
			}
			out[i] = divs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reportServiceImpl) figures(sales []models.MatchedSale, remaining map[string][]models.RemainingPurchase, dividends []models.DividendRecord) *models.Figures {
	if sales == nil {
		sales = []models.MatchedSale{}
	}
	if remaining == nil {
		remaining = make(map[string][]models.RemainingPurchase)
	}
	if dividends == nil {
		dividends = []models.DividendRecord{}
	}
	winLoss := processors.WinLoss(sales)
	return &models.Figures{
		Sales:              sales,
		RemainingPurchases: remaining,
		Dividends:          dividends,
		DividendTaxes:      s.dividends.CalculateDividendsTax(dividends),
		WinLoss:            winLoss.Local,
		WinLossInCurrency:  winLoss.InCurrency,
	}
}

func (s *reportServiceImpl) entry(runID string) (*runEntry, error) {
	v, found := s.reportCache.Get(fmt.Sprintf(ckRun, runID))
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, runID)
	}
	return v.(*runEntry), nil
}

func (s *reportServiceImpl) GetReport(runID string) (*models.Report, error) {
	e, err := s.entry(runID)
	if err != nil {
		return nil, err
	}
	return e.report, nil
}

func (s *reportServiceImpl) RunStage(runID string) (Stage, error) {
	e, err := s.entry(runID)
	if err != nil {
		return StageInit, err
	}
	return e.run.Stage(), nil
}

func (s *reportServiceImpl) Export(runID, table, figureKey string, w io.Writer) error {
	e, err := s.entry(runID)
	if err != nil {
		return err
	}
	switch table {
	case export.Workbook:
		err = export.WriteWorkbook(w, e.report, figureKey)
	case export.Declaration:
		err = export.WriteDeclaration(w, e.report, figureKey)
	default:
		err = export.WriteTable(w, e.report, table, figureKey)
	}
	if err != nil {
		return err
	}
	return e.run.Advance(StageExported)
}
