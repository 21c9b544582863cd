package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"github.com/username/taxfolio/declaration/src/config"
	"github.com/username/taxfolio/declaration/src/export"
	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
	"github.com/username/taxfolio/declaration/src/services"
)

// sourcesFlag collects repeated -p parser:path[,path...] values.
type sourcesFlag []sourceArg

type sourceArg struct {
	parser string
	paths  []string
}

func (s *sourcesFlag) String() string {
	parts := make([]string, len(*s))
	for i, arg := range *s {
		parts[i] = arg.parser + ":" + strings.Join(arg.paths, ",")
	}
	return strings.Join(parts, " ")
}

func (s *sourcesFlag) Set(v string) error {
	parser, list, ok := strings.Cut(v, ":")
	parser = strings.ToLower(strings.TrimSpace(parser))
	paths := splitList(list)
	if !ok || parser == "" || len(paths) == 0 {
		return fmt.Errorf("expected parser:path[,path...], got %q", v)
	}
	for i := range *s {
		if (*s)[i].parser == parser {
			(*s)[i].paths = append((*s)[i].paths, paths...)
			return nil
		}
	}
	*s = append(*s, sourceArg{parser: parser, paths: paths})
	return nil
}

type reportCmd struct {
	sources  sourcesFlag
	outDir   string
	workbook string
	combine  bool
	raw      bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "compute declaration figures from broker statements" }
func (*reportCmd) Usage() string {
	return `taxdecl report -p <parser>:<path>[,<path>...] [-p ...] [-combine] [-o <dir>] [-xlsx <file>]

  Parses the statements of each source, matches sales against purchase lots,
  aggregates dividend taxes and prints a summary. A path may be a directory,
  in which case every file in it is read.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.sources, "p", "Statement source as parser:path[,path...]; repeat for several sources")
	f.BoolVar(&c.combine, "combine", true, "Merge all sources into one set of figures")
	f.StringVar(&c.outDir, "o", "", "Write CSV tables and declaration.xml into this directory")
	f.StringVar(&c.workbook, "xlsx", "", "Write all tables into this XLSX workbook")
	f.BoolVar(&c.raw, "raw", false, "Print the summary as plain markdown")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(c.sources) == 0 {
		fail("at least one -p source is required")
		return subcommands.ExitUsageError
	}

	eng, err := newEngine(config.Cfg)
	if err != nil {
		fail("Error initializing: %v", err)
		return subcommands.ExitFailure
	}
	defer eng.Close()

	report, err := c.run(ctx, eng.service)
	if err != nil {
		fail("Error: %v", err)
		return exitStatus(err)
	}

	if c.outDir != "" {
		written, err := export.WriteDir(c.outDir, report)
		if err != nil {
			fail("Error writing tables: %v", err)
			return subcommands.ExitFailure
		}
		logger.L.Info("Tables written", "dir", c.outDir, "files", len(written))
	}
	if c.workbook != "" {
		if err := writeWorkbook(c.workbook, report); err != nil {
			fail("Error writing workbook: %v", err)
			return subcommands.ExitFailure
		}
	}

	md := export.Markdown(report)
	if c.raw {
		fmt.Print(md)
	} else {
		printMarkdown(md)
	}
	return subcommands.ExitSuccess
}

// run opens every statement file and hands them to the report service.
func (c *reportCmd) run(ctx context.Context, svc services.ReportService) (*models.Report, error) {
	req := services.ReportRequest{Combine: c.combine}
	var files []*os.File
	defer func() {
		for _, fh := range files {
			fh.Close()
		}
	}()
	for _, src := range c.sources {
		paths, err := expandPaths(src.paths)
		if err != nil {
			return nil, err
		}
		in := services.SourceInput{Parser: src.parser}
		for _, p := range paths {
			fh, err := os.Open(p)
			if err != nil {
				return nil, err
			}
			files = append(files, fh)
			in.Files = append(in.Files, fh)
		}
		logger.L.Debug("Source statements", "parser", src.parser, "files", paths)
		req.Sources = append(req.Sources, in)
	}
	return svc.Generate(ctx, req)
}

// expandPaths replaces directories by the regular files they contain, sorted
// by name. Hidden files are skipped.
func expandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		if len(names) == 0 {
			return nil, fmt.Errorf("directory %s contains no statements", p)
		}
		for _, n := range names {
			out = append(out, filepath.Join(p, n))
		}
	}
	return out, nil
}

// writeWorkbook writes the figures to path. Per-source reports get one
// workbook per source, named path with the source appended.
func writeWorkbook(path string, report *models.Report) error {
	if len(report.FigureKeys) <= 1 {
		return writeWorkbookFile(path, report, "")
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for _, key := range report.FigureKeys {
		if err := writeWorkbookFile(base+"-"+key+ext, report, key); err != nil {
			return err
		}
	}
	return nil
}

func writeWorkbookFile(path string, report *models.Report, key string) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	return export.WriteWorkbook(fh, report, key)
}
