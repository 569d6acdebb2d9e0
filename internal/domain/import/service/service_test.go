package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-import/pkg/locale"
)

// fakeStore records writes and fails descriptions listed in failOn.
// beforeWrite runs at the start of the n-th call.
type fakeStore struct {
	mu          sync.Mutex
	calls       int
	records     []Record
	failOn      map[string]bool
	beforeWrite func(n int)
}

func (f *fakeStore) CreateTransaction(ctx context.Context, _ uuid.UUID, rec Record) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.beforeWrite != nil {
		f.beforeWrite(f.calls)
	}
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}
	if f.failOn[rec.Description] {
		return uuid.Nil, errors.New("constraint violation")
	}
	f.records = append(f.records, rec)
	return uuid.New(), nil
}

func newTestService(store TransactionStore) *ImportService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewImportService(categorization.NewEngine(categorization.DefaultTaxonomy()), store, logger)
}

func previewOf(t *testing.T, txs []parser.ParsedTransaction) *Preview {
	t.Helper()
	return newPreview(parser.FormatOFX, locale.PtBR, txs, categorization.DefaultTaxonomy())
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func fakeTransactions(n int) []parser.ParsedTransaction {
	faker := gofakeit.New(42)
	txs := make([]parser.ParsedTransaction, n)
	for i := range txs {
		dir := parser.Income
		if faker.Bool() {
			dir = parser.Expense
		}
		d := faker.DateRange(mustDate("2024-01-01"), mustDate("2024-12-31"))
		txs[i] = parser.ParsedTransaction{
			Date:        time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Description: fmt.Sprintf("%s %d", faker.Company(), i),
			Amount:      decimal.NewFromFloat(faker.Price(1, 5000)).Round(2),
			Direction:   dir,
			Category:    categorization.General,
		}
	}
	return txs
}

func TestImportService_PreviewExamples(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	t.Run("ofx", func(t *testing.T) {
		doc := parser.NewFileDocument("extrato.ofx", []byte("<STMTTRN><DTPOSTED>20240115120000[-3:GMT]<TRNAMT>-45.90<MEMO>SUPERMERCADO BOM PRECO</STMTTRN>"))
		p, err := svc.Preview(ctx, doc)
		require.NoError(t, err)
		require.Equal(t, 1, p.Len())

		tx := p.Transactions()[0]
		assert.Equal(t, "2024-01-15", tx.DateString())
		assert.Equal(t, "45.90", tx.Amount.StringFixed(2))
		assert.Equal(t, parser.Expense, tx.Direction)
		assert.Equal(t, categorization.Food, tx.Category)
		assert.Nil(t, p.Mapping)
	})

	t.Run("dual csv", func(t *testing.T) {
		doc := parser.NewFileDocument("extrato.csv", []byte("Data,Histórico,Crédito,Débito\n10/03/2024,SALARIO EMPRESA X,\"3500,00\",\"0,00\"\n"))
		p, err := svc.Preview(ctx, doc)
		require.NoError(t, err)
		require.Equal(t, 1, p.Len())

		tx := p.Transactions()[0]
		assert.Equal(t, "2024-03-10", tx.DateString())
		assert.Equal(t, parser.Income, tx.Direction)
		assert.Equal(t, categorization.Salary, tx.Category)

		require.NotNil(t, p.Mapping)
		assert.True(t, p.Mapping.IsDualEntry())
		assert.Equal(t, parser.SourceHeader, p.Mapping.Source)
	})

	t.Run("paste", func(t *testing.T) {
		p, err := svc.Preview(ctx, parser.NewPastedDocument("NETFLIX.COM\n2024-02-05\n- R$ 39,90"))
		require.NoError(t, err)
		tx := p.Transactions()[0]
		assert.Equal(t, "NETFLIX.COM", tx.Description)
		assert.Equal(t, categorization.Leisure, tx.Category)
		assert.Equal(t, parser.FormatFreeform, p.Format)
	})

	t.Run("empty result", func(t *testing.T) {
		_, err := svc.Preview(ctx, parser.NewFileDocument("vazio.ofx", []byte("<OFX></OFX>")))
		assert.ErrorIs(t, err, parser.ErrEmptyResult)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := svc.Preview(ctx, parser.NewFileDocument("foto.jpg", []byte("x")))
		assert.ErrorIs(t, err, parser.ErrUnsupportedFormat)
	})
}

func TestImportService_PreviewWithMapping(t *testing.T) {
	svc := newTestService(nil)
	doc := parser.NewFileDocument("extrato.csv", []byte("quando;quanto;o que\n05/05/2024;-80,00;RESTAURANTE\n"))

	m := parser.NewColumnMapping()
	m.DateCol, m.AmountCol, m.DescCol, m.HeaderRow = 0, 1, 2, 0

	p, err := svc.PreviewWithMapping(context.Background(), doc, m)
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())
	assert.Equal(t, categorization.Food, p.Transactions()[0].Category)
	require.NotNil(t, p.Mapping)
	assert.Equal(t, parser.SourceManual, p.Mapping.Source)
}

func TestImportService_AutoLocale(t *testing.T) {
	svc := newTestService(nil).WithAutoLocale()
	doc := parser.NewFileDocument("statement.csv", []byte("date,description,amount\n03/15/2024,coffee shop,-1,050.00\n03/16/2024,salary,\"$2,000.00\"\n"))

	p, err := svc.Preview(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "en-US", p.Locale.Tag)
}

func TestImportService_Commit(t *testing.T) {
	txs := fakeTransactions(20)
	store := &fakeStore{failOn: map[string]bool{txs[3].Description: true, txs[11].Description: true}}
	svc := newTestService(store)

	report, err := svc.Commit(context.Background(), uuid.New(), previewOf(t, txs))
	require.NoError(t, err)

	assert.Equal(t, 20, report.Total)
	assert.Equal(t, 18, report.Committed)
	assert.Equal(t, 2, report.Failed)
	assert.False(t, report.Abandoned)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 3, report.Failures[0].Index)
	assert.Equal(t, txs[11].Description, report.Failures[1].Description)
	assert.Len(t, store.records, 18)

	var want DateSpan
	for i, tx := range txs {
		if i != 3 && i != 11 {
			want.include(tx.Date)
		}
	}
	assert.Equal(t, want, report.Span)

	for _, rec := range store.records {
		assert.False(t, rec.Amount.IsNegative())
		assert.Equal(t, "BRL", rec.Currency)
		assert.Len(t, rec.Date, 10)
	}
}

func TestImportService_CommitAbandon(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{}
	// Cancelled while the second write is in flight: that write still lands.
	store.beforeWrite = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	svc := newTestService(store)

	report, err := svc.Commit(ctx, uuid.New(), previewOf(t, fakeTransactions(5)))
	require.NoError(t, err)
	assert.True(t, report.Abandoned)
	assert.Equal(t, 2, report.Committed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 5, report.Total)
}

func TestImportService_CommitRateLimitHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	store := &fakeStore{}
	svc := newTestService(store).WithRateLimit(rate.NewLimiter(rate.Every(time.Hour), 1))

	report, err := svc.Commit(ctx, uuid.New(), previewOf(t, fakeTransactions(3)))
	require.NoError(t, err)
	assert.True(t, report.Abandoned)
	assert.Equal(t, 1, report.Committed)
	assert.Len(t, store.records, 1)
}

func TestImportService_CommitAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	report, err := newTestService(store).Commit(ctx, uuid.New(), previewOf(t, fakeTransactions(3)))
	require.NoError(t, err)
	assert.True(t, report.Abandoned)
	assert.Zero(t, store.calls)
	assert.True(t, report.Span.IsZero())
}

func TestImportService_CommitWithoutStore(t *testing.T) {
	_, err := newTestService(nil).Commit(context.Background(), uuid.New(), previewOf(t, nil))
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestImportService_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	txs := fakeTransactions(4)
	store := &fakeStore{failOn: map[string]bool{txs[0].Description: true}}
	svc := newTestService(store).WithMetrics(metrics)

	_, err := svc.Preview(context.Background(), parser.NewPastedDocument("NETFLIX.COM\n2024-02-05\n- R$ 39,90"))
	require.NoError(t, err)
	_, err = svc.Preview(context.Background(), parser.NewFileDocument("vazio.ofx", []byte("<OFX></OFX>")))
	require.Error(t, err)
	_, err = svc.Preview(context.Background(), parser.NewPastedDocument("nada aqui"))
	require.Error(t, err)

	_, err = svc.Commit(context.Background(), uuid.New(), previewOf(t, txs))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.documents.WithLabelValues("freeform-text", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.documents.WithLabelValues("ofx", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.documents.WithLabelValues("freeform-text", "not_recognized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.parsedRows.WithLabelValues("freeform-text")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.writes.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.writes.WithLabelValues("failed")))
}
