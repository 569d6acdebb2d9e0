package service

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-import/pkg/locale"
	"github.com/FACorreiaa/statement-import/pkg/money"
)

var ErrRowOutOfRange = errors.New("preview row out of range")

// DateSpan is the inclusive range of transaction dates.
type DateSpan struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether no date has been included.
func (d DateSpan) IsZero() bool {
	return d.From.IsZero() && d.To.IsZero()
}

func (d *DateSpan) include(t time.Time) {
	if d.From.IsZero() || t.Before(d.From) {
		d.From = t
	}
	if d.To.IsZero() || t.After(d.To) {
		d.To = t
	}
}

// Preview holds categorized candidates awaiting confirmation. It is owned by
// one caller and is not safe for concurrent use.
type Preview struct {
	Format  parser.Format
	Locale  locale.Locale
	Mapping *parser.ColumnMapping // tabular documents only

	rows     []parser.ParsedTransaction
	taxonomy *categorization.Taxonomy
	index    *previewIndex
}

func newPreview(format parser.Format, loc locale.Locale, rows []parser.ParsedTransaction, tax *categorization.Taxonomy) *Preview {
	return &Preview{Format: format, Locale: loc, rows: rows, taxonomy: tax}
}

func (p *Preview) Len() int {
	return len(p.rows)
}

// Transactions returns a copy of the current rows.
func (p *Preview) Transactions() []parser.ParsedTransaction {
	return append([]parser.ParsedTransaction(nil), p.rows...)
}

// Span returns the earliest and latest dates in the preview.
func (p *Preview) Span() DateSpan {
	var span DateSpan
	for _, tx := range p.rows {
		span.include(tx.Date)
	}
	return span
}

// Totals sums incomes and expenses in the preview currency.
func (p *Preview) Totals() (income, expense *money.Money, err error) {
	income = money.New(0, p.Locale.CurrencyCode)
	expense = money.New(0, p.Locale.CurrencyCode)
	for _, tx := range p.rows {
		amount := money.NewFromDecimal(tx.Amount, p.Locale.CurrencyCode)
		if tx.Direction == parser.Expense {
			expense, err = expense.Add(amount)
		} else {
			income, err = income.Add(amount)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return income, expense, nil
}

// SetCategory overrides the category of row i. The label is resolved against
// the taxonomy, so "invest" becomes "Investments".
func (p *Preview) SetCategory(i int, label string) (string, error) {
	if i < 0 || i >= len(p.rows) {
		return "", fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	resolved, err := p.taxonomy.ResolveLabel(label)
	if err != nil {
		return "", err
	}
	p.rows[i].Category = resolved
	p.invalidate()
	return resolved, nil
}

// Exclude drops row i; later rows shift down by one.
func (p *Preview) Exclude(i int) error {
	if i < 0 || i >= len(p.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	p.rows = append(p.rows[:i], p.rows[i+1:]...)
	p.invalidate()
	return nil
}

// Search returns the indices of rows whose description or category matches
// query, in row order. An empty query matches every row.
func (p *Preview) Search(query string) ([]int, error) {
	if query == "" {
		all := make([]int, len(p.rows))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	if p.index == nil {
		idx, err := newPreviewIndex(p.rows)
		if err != nil {
			return nil, err
		}
		p.index = idx
	}
	return p.index.search(query, len(p.rows))
}

// Close releases the search index.
func (p *Preview) Close() error {
	return p.invalidate()
}

func (p *Preview) invalidate() error {
	if p.index == nil {
		return nil
	}
	err := p.index.close()
	p.index = nil
	return err
}

type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Category    string `csv:"category"`
	Direction   string `csv:"direction"`
	Amount      string `csv:"amount"`
	Currency    string `csv:"currency"`
}

// WriteCSV exports the preview with signed amounts.
func (p *Preview) WriteCSV(w io.Writer) error {
	rows := make([]*csvRow, len(p.rows))
	for i, tx := range p.rows {
		rows[i] = &csvRow{
			Date:        tx.DateString(),
			Description: tx.Description,
			Category:    tx.Category,
			Direction:   string(tx.Direction),
			Amount:      money.Signed(tx.Amount, tx.Direction == parser.Expense, p.Locale.CurrencyCode).String(),
			Currency:    p.Locale.CurrencyCode,
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write preview CSV: %w", err)
	}
	return nil
}
