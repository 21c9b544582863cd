package export

import (
	"fmt"
	"io"

	"github.com/tealeg/xlsx"
	"github.com/username/taxfolio/declaration/src/models"
)

// maxSheetName is the sheet name limit of spreadsheet applications.
const maxSheetName = 31

// WriteWorkbook writes every table of one figure set as sheets of a workbook.
func WriteWorkbook(w io.Writer, report *models.Report, key string) error {
	f := xlsx.NewFile()
	for _, name := range Tables() {
		statementsKey := key
		if name == TableStatements && key == "" {
			statementsKey = models.CombinedKey
		}
		t, err := BuildTable(report, name, statementsKey)
		if err != nil {
			if report.SalesSkipped && (name == TableSales || name == TableRemainingPurchases) {
				continue
			}
			return err
		}
		if err := addSheet(f, t); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func addSheet(f *xlsx.File, t Table) error {
	name := t.Name
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return fmt.Errorf("adding sheet %s: %w", name, err)
	}
	header := sheet.AddRow()
	for _, h := range t.Header {
		header.AddCell().SetString(h)
	}
	for _, r := range t.Rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	return nil
}
