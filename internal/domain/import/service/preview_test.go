package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
)

func sampleRows() []parser.ParsedTransaction {
	return []parser.ParsedTransaction{
		{Date: mustDate("2024-02-05"), Description: "NETFLIX.COM", Amount: decimal.RequireFromString("39.90"), Direction: parser.Expense, Category: categorization.Leisure},
		{Date: mustDate("2024-01-15"), Description: "SUPERMERCADO BOM PRECO", Amount: decimal.RequireFromString("45.90"), Direction: parser.Expense, Category: categorization.Food},
		{Date: mustDate("2024-03-10"), Description: "SALARIO EMPRESA X", Amount: decimal.RequireFromString("3500"), Direction: parser.Income, Category: categorization.Salary},
	}
}

func TestPreview_Span(t *testing.T) {
	p := previewOf(t, sampleRows())
	span := p.Span()
	assert.Equal(t, mustDate("2024-01-15"), span.From)
	assert.Equal(t, mustDate("2024-03-10"), span.To)

	assert.True(t, previewOf(t, nil).Span().IsZero())
}

func TestPreview_SetCategory(t *testing.T) {
	p := previewOf(t, sampleRows())

	label, err := p.SetCategory(0, "shop")
	require.NoError(t, err)
	assert.Equal(t, categorization.Shopping, label)
	assert.Equal(t, categorization.Shopping, p.Transactions()[0].Category)

	_, err = p.SetCategory(0, "groceries")
	assert.ErrorIs(t, err, categorization.ErrUnknownCategory)

	_, err = p.SetCategory(7, "Food")
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestPreview_Exclude(t *testing.T) {
	p := previewOf(t, sampleRows())
	snapshot := p.Transactions()

	require.NoError(t, p.Exclude(1))
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "SALARIO EMPRESA X", p.Transactions()[1].Description)
	assert.Equal(t, mustDate("2024-02-05"), p.Span().From)

	assert.Len(t, snapshot, 3)
	assert.Equal(t, "SUPERMERCADO BOM PRECO", snapshot[1].Description)

	assert.ErrorIs(t, p.Exclude(-1), ErrRowOutOfRange)
}

func TestPreview_Search(t *testing.T) {
	p := previewOf(t, sampleRows())
	defer p.Close()

	hits, err := p.Search("netflix")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, hits)

	hits, err = p.Search("supermercdo")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, hits)

	hits, err = p.Search("salary")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, hits)

	hits, err = p.Search("")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, hits)

	hits, err = p.Search("zzzzzz")
	require.NoError(t, err)
	assert.Empty(t, hits)

	t.Run("index follows edits", func(t *testing.T) {
		require.NoError(t, p.Exclude(0))
		hits, err := p.Search("salary")
		require.NoError(t, err)
		assert.Equal(t, []int{1}, hits)

		_, err = p.SetCategory(0, "Health")
		require.NoError(t, err)
		hits, err = p.Search("health")
		require.NoError(t, err)
		assert.Equal(t, []int{0}, hits)
	})
}

func TestPreview_WriteCSV(t *testing.T) {
	p := previewOf(t, sampleRows()[:2])

	var buf bytes.Buffer
	require.NoError(t, p.WriteCSV(&buf))
	assert.Equal(t,
		"date,description,category,direction,amount,currency\n"+
			"2024-02-05,NETFLIX.COM,Leisure,expense,-39.90,BRL\n"+
			"2024-01-15,SUPERMERCADO BOM PRECO,Food,expense,-45.90,BRL\n",
		buf.String())
}

func TestPreview_Totals(t *testing.T) {
	p := previewOf(t, sampleRows())
	income, expense, err := p.Totals()
	require.NoError(t, err)
	assert.Equal(t, int64(350000), income.Amount())
	assert.Equal(t, int64(8580), expense.Amount())
	assert.Equal(t, "BRL", income.Currency())
}

func TestDateSpan_Include(t *testing.T) {
	var span DateSpan
	span.include(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	span.include(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	span.include(time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 4, int(span.From.Month()))
	assert.Equal(t, 5, int(span.To.Month()))
}
