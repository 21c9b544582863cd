package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/username/taxfolio/declaration/src/logger"
	"github.com/username/taxfolio/declaration/src/models"
)

// WriteCSV writes a table with its header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("writing %s header: %w", t.Name, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("writing %s rows: %w", t.Name, err)
	}
	return nil
}

// WriteTable builds a table and writes it as CSV.
func WriteTable(w io.Writer, report *models.Report, table, key string) error {
	t, err := BuildTable(report, table, key)
	if err != nil {
		return err
	}
	return WriteCSV(w, t)
}

// WriteDir writes every table of every figure set under dir, plus one
// declaration.xml per figure set, and returns the created paths. With more
// than one figure set, each gets its own subdirectory. Statements always go
// per source.
func WriteDir(dir string, report *models.Report) ([]string, error) {
	var written []string
	write := func(path string, render func(io.Writer) error) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := render(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, src := range report.Sources {
		t, err := BuildTable(report, TableStatements, src)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, TableStatements+".csv")
		if len(report.Sources) > 1 {
			path = filepath.Join(dir, src, TableStatements+".csv")
		}
		if err := write(path, csvOf(t)); err != nil {
			return written, err
		}
	}

	for _, key := range report.FigureKeys {
		sub := dir
		if len(report.FigureKeys) > 1 {
			sub = filepath.Join(dir, key)
		}
		for _, name := range Tables() {
			if name == TableStatements {
				continue
			}
			t, err := BuildTable(report, name, key)
			if err != nil {
				if report.SalesSkipped && (name == TableSales || name == TableRemainingPurchases) {
					continue
				}
				return written, err
			}
			if err := write(filepath.Join(sub, name+".csv"), csvOf(t)); err != nil {
				return written, err
			}
		}
		declaration := func(w io.Writer) error { return WriteDeclaration(w, report, key) }
		if err := write(filepath.Join(sub, "declaration.xml"), declaration); err != nil {
			return written, err
		}
	}
	logger.L.Info("Report tables written", "dir", dir, "files", len(written), "runID", report.RunID)
	return written, nil
}

func csvOf(t Table) func(io.Writer) error {
	return func(w io.Writer) error { return WriteCSV(w, t) }
}
