package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/gocarina/gocsv"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-import/internal/domain/import/sniffer"
)

const maxXLSRows = 10000

// preferredSheets are tried before falling back to the first sheet.
var preferredSheets = []string{"extrato", "movimentos", "transactions", "statement"}

// Cell is one spreadsheet cell. Numeric is set only when the workbook stored a
// native number, which is how spreadsheet dates arrive (as serials).
type Cell struct {
	Text    string
	Numeric bool
	Number  float64
}

// Grid is a rectangular-ish table of cells; rows may have different lengths.
type Grid [][]Cell

// At returns the cell at row/col, and false when it is out of range.
func (g Grid) At(row, col int) (Cell, bool) {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return Cell{}, false
	}
	return g[row][col], true
}

// LoadGrid reads the first usable sheet of a tabular document.
// The extension picks the reader; anything unrecognised is read as CSV.
func LoadGrid(doc Document) (Grid, error) {
	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".xlsx":
		return loadXLSX(doc.Data)
	case ".xls":
		return loadXLS(doc.Data)
	default:
		return loadCSV(doc.Data)
	}
}

func loadCSV(data []byte) (Grid, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := gocsv.LazyCSVReader(bytes.NewReader(data))
	if r, ok := reader.(*csv.Reader); ok {
		r.Comma = sniffer.DetectDelimiter(data)
		r.FieldsPerRecord = -1
	}

	var grid Grid
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		grid = append(grid, textRow(record, false))
	}
	return grid, nil
}

func loadXLSX(data []byte) (Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := pickSheet(f.GetSheetList())
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	grid := make(Grid, 0, len(rows))
	for _, row := range rows {
		grid = append(grid, textRow(row, true))
	}
	return grid, nil
}

func loadXLS(data []byte) (Grid, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return nil, fmt.Errorf("failed to open XLS file: %w", err)
	}

	rows := wb.ReadAllCells(maxXLSRows)
	grid := make(Grid, 0, len(rows))
	for _, row := range rows {
		grid = append(grid, textRow(row, true))
	}
	return grid, nil
}

// textRow converts raw strings to cells. Workbook readers hand numbers over as
// plain decimal text, so those are recognised as native numbers.
func textRow(values []string, workbook bool) []Cell {
	row := make([]Cell, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		row[i] = Cell{Text: v}
		if !workbook || v == "" {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			row[i].Numeric = true
			row[i].Number = n
		}
	}
	return row
}

func pickSheet(sheets []string) string {
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if fuzzy.MatchFold(preferred, sheet) {
				return sheet
			}
		}
	}
	return sheets[0]
}
