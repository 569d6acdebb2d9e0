package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-import/pkg/locale"
)

var (
	// Spreadsheet serial day 0.
	serialEpoch   = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	slashDashDate = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
)

// TabularParser reads spreadsheet and CSV grids in either the single
// signed-amount layout or the dual credit/debit layout.
type TabularParser struct {
	loc     locale.Locale
	mapping *ColumnMapping
}

// NewTabularParser creates a tabular parser that infers columns per document.
func NewTabularParser(loc locale.Locale) *TabularParser {
	return &TabularParser{loc: loc}
}

// WithMapping returns a parser that uses m instead of inferring columns.
func (p *TabularParser) WithMapping(m ColumnMapping) *TabularParser {
	m.Source = SourceManual
	return &TabularParser{loc: p.loc, mapping: &m}
}

// Inspect loads the grid and returns the mapping Parse would use.
func (p *TabularParser) Inspect(doc Document) (ColumnMapping, error) {
	grid, err := LoadGrid(doc)
	if err != nil {
		return ColumnMapping{}, err
	}
	return p.mappingFor(grid), nil
}

// Parse loads the document grid and converts its rows.
func (p *TabularParser) Parse(doc Document) ([]ParsedTransaction, error) {
	grid, err := LoadGrid(doc)
	if err != nil {
		return nil, err
	}
	return p.ParseGrid(grid), nil
}

// ParseGrid converts grid rows. Rows that fail extraction or hit an exclusion
// marker are dropped.
func (p *TabularParser) ParseGrid(grid Grid) []ParsedTransaction {
	m := p.mappingFor(grid)
	if !m.Complete() {
		return nil
	}

	txs := make([]ParsedTransaction, 0, len(grid))
	for i := m.HeaderRow + 1; i < len(grid); i++ {
		if tx, ok := p.parseRow(grid, i, m); ok {
			txs = append(txs, tx)
		}
	}
	return txs
}

func (p *TabularParser) mappingFor(grid Grid) ColumnMapping {
	if p.mapping != nil {
		return *p.mapping
	}
	return InferColumns(grid, p.loc)
}

func (p *TabularParser) parseRow(grid Grid, i int, m ColumnMapping) (ParsedTransaction, bool) {
	row := grid[i]
	if len(row) < 2 {
		return ParsedTransaction{}, false
	}

	dateCell, ok := grid.At(i, m.DateCol)
	if !ok {
		return ParsedTransaction{}, false
	}
	descCell, ok := grid.At(i, m.DescCol)
	if !ok {
		return ParsedTransaction{}, false
	}

	description := strings.TrimSpace(descCell.Text)
	if p.loc.IsExcluded(description) {
		return ParsedTransaction{}, false
	}

	var (
		amount decimal.Decimal
		dir    Direction
	)
	if m.IsDualEntry() {
		credit := p.cellAmountOrZero(grid, i, m.CreditCol)
		debit := p.cellAmountOrZero(grid, i, m.DebitCol)
		switch {
		case credit.IsPositive():
			amount, dir = credit, Income
		case !debit.IsZero():
			amount, dir = debit.Abs(), Expense
		default:
			return ParsedTransaction{}, false
		}
	} else {
		cell, ok := grid.At(i, m.AmountCol)
		if !ok {
			return ParsedTransaction{}, false
		}
		v, err := p.cellAmount(cell)
		if err != nil {
			return ParsedTransaction{}, false
		}
		amount, dir = v, Income
		if v.IsNegative() {
			dir = Expense
		}
	}

	date, ok := p.cellDate(dateCell)
	if !ok {
		return ParsedTransaction{}, false
	}

	if description == "" {
		description = p.loc.Untitled
	}

	return newTransaction(date, description, amount, dir, rowSource(row)), true
}

func (p *TabularParser) cellAmount(c Cell) (decimal.Decimal, error) {
	if c.Numeric {
		if d, err := decimal.NewFromString(c.Text); err == nil {
			return d, nil
		}
		return decimal.NewFromFloat(c.Number), nil
	}
	return p.loc.ParseAmount(c.Text)
}

// cellAmountOrZero treats missing or unparseable cells as zero.
func (p *TabularParser) cellAmountOrZero(grid Grid, row, col int) decimal.Decimal {
	c, ok := grid.At(row, col)
	if !ok {
		return decimal.Zero
	}
	v, err := p.cellAmount(c)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// cellDate accepts spreadsheet serials, DD/MM/YYYY or DD-MM-YYYY (month first
// for month-first locales) and finally the locale's generic layouts.
func (p *TabularParser) cellDate(c Cell) (time.Time, bool) {
	if c.Numeric {
		if c.Number <= 0 {
			return time.Time{}, false
		}
		return serialEpoch.AddDate(0, 0, int(math.Floor(c.Number))), true
	}

	text := strings.TrimSpace(c.Text)
	if m := slashDashDate.FindStringSubmatch(text); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		day, month := first, second
		if !p.loc.DayFirst {
			day, month = second, first
		}
		return calendarDate(year, time.Month(month), day)
	}

	for _, layout := range p.loc.DateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func rowSource(row []Cell) string {
	parts := make([]string, len(row))
	for i, c := range row {
		parts[i] = c.Text
	}
	return strings.Join(parts, ";")
}
