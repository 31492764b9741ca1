package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/internal/model"
)

// headerScanLimit bounds how far down the sheet the parser looks for
// the header row. Procurement sheets often open with a title block.
const headerScanLimit = 10

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one sheet into RawRecords. The header row is
// discovered within the first few rows by looking for a recognized
// name column; rows above it are ignored. Row indices count data rows
// from zero in sheet order.
func ReadXLSX(path string, opts XLSXOptions) ([]model.RawRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	headerAt := -1
	var columns []string
	for i, row := range sheet.Rows {
		if i >= headerScanLimit {
			break
		}
		cells := rowToStrings(row)
		if isHeaderRow(cells) {
			headerAt = i
			columns = mapHeader(cells)
			break
		}
	}
	if headerAt < 0 {
		return nil, eris.Errorf("fetcher: no header row with a name column in the first %d rows of %s", headerScanLimit, path)
	}

	var records []model.RawRecord
	for _, row := range sheet.Rows[headerAt+1:] {
		cells := rowToStrings(row)
		if emptyRow(cells) {
			continue
		}
		values := make(map[string]string, len(columns))
		for j, col := range columns {
			if col == "" || j >= len(cells) {
				continue
			}
			values[col] = cells[j]
		}
		records = append(records, model.RawRecord{
			Index:   len(records),
			Columns: columns,
			Values:  values,
		})
	}

	zap.L().Info("fetcher: read xlsx",
		zap.String("path", path), zap.Int("rows", len(records)), zap.Int("header_row", headerAt))
	return records, nil
}

// WriteXLSX writes outcomes in input order: the original columns first,
// then normalized unit, OKPD2 code and the acceptance comment.
func WriteXLSX(path string, outcomes []model.RowOutcome) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Нормализация")
	if err != nil {
		return eris.Wrap(err, "fetcher: add sheet")
	}

	columns := outputColumns(outcomes)
	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	for _, out := range outcomes {
		row := sheet.AddRow()
		for _, col := range columns {
			row.AddCell().SetString(outputCell(out, col))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "fetcher: save xlsx")
	}
	zap.L().Info("fetcher: wrote xlsx", zap.String("path", path), zap.Int("rows", len(outcomes)))
	return nil
}

// outputColumns is the original column order plus the result columns.
func outputColumns(outcomes []model.RowOutcome) []string {
	var base []string
	for _, out := range outcomes {
		if len(out.Raw.Columns) > 0 {
			base = out.Raw.Columns
			break
		}
	}

	seen := make(map[string]bool)
	var cols []string
	for _, c := range base {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		cols = append(cols, c)
	}
	for _, c := range []string{model.ColNormalizedUnit, model.ColOKPD2Code, model.ColComment} {
		if !seen[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

func outputCell(out model.RowOutcome, col string) string {
	switch col {
	case model.ColNormalizedUnit:
		if out.Record != nil {
			return out.Record.NormalizedUnit
		}
		return ""
	case model.ColOKPD2Code:
		if out.Classification != nil && out.Outcome != nil && out.Outcome.Accepted {
			return out.Classification.Code
		}
		return ""
	case model.ColComment:
		return comment(out)
	}
	// Failed and abandoned rows have no Record; their source cells come
	// from the outcome's RawRecord so no row is dropped from the output.
	if out.Record != nil {
		return out.Record.Raw.Values[col]
	}
	return out.Raw.Values[col]
}

// comment renders the terminal state of a row for the operator.
func comment(out model.RowOutcome) string {
	switch {
	case out.Outcome != nil && out.Outcome.Accepted:
		return "Нормализовано"
	case out.Outcome != nil:
		return out.Outcome.Reason
	case out.Status == model.StatusFailed:
		return "Ошибка обработки: " + out.Error
	case out.Status == model.StatusPending:
		return "Не обработано: прервано"
	}
	return ""
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("fetcher: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
