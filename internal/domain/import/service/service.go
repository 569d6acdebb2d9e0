// Package service turns parsed statements into a reviewable preview and
// commits confirmed rows to the transaction store one at a time.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/statement-import/internal/domain/categorization"
	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-import/internal/domain/import/sniffer"
	"github.com/FACorreiaa/statement-import/pkg/locale"
)

const tracerName = "github.com/FACorreiaa/statement-import/internal/domain/import/service"

var ErrNoStore = errors.New("no transaction store configured")

// Record is the shape handed to the transaction store.
type Record struct {
	Date        string // YYYY-MM-DD
	Description string
	Amount      decimal.Decimal // non-negative
	Direction   parser.Direction
	Category    string
	Currency    string
}

// TransactionStore persists one record per call. A failure only affects
// that record.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, ownerID uuid.UUID, rec Record) (uuid.UUID, error)
}

// CommitFailure describes a row the store rejected.
type CommitFailure struct {
	Index       int
	Description string
	Err         error
}

// CommitReport summarises a commit run. Span covers committed rows only.
type CommitReport struct {
	Total     int
	Committed int
	Failed    int
	Failures  []CommitFailure
	Span      DateSpan
	Abandoned bool // the caller cancelled before every row was attempted
}

// ImportService orchestrates parsing, categorization and commit.
type ImportService struct {
	engine        *categorization.Engine
	store         TransactionStore
	logger        *slog.Logger
	loc           locale.Locale
	autoLocale    bool
	excerptLength int
	limiter       *rate.Limiter
	metrics       *Metrics
	tracer        trace.Tracer
}

// NewImportService creates an import service using the pt-BR locale.
// store may be nil for preview-only use.
func NewImportService(engine *categorization.Engine, store TransactionStore, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		engine:        engine,
		store:         store,
		logger:        logger,
		loc:           locale.PtBR,
		excerptLength: 600,
		tracer:        otel.Tracer(tracerName),
	}
}

// WithLocale fixes the locale used for every document.
func (s *ImportService) WithLocale(loc locale.Locale) *ImportService {
	s.loc = loc
	s.autoLocale = false
	return s
}

// WithAutoLocale probes each text document for its regional conventions.
// PDFs keep the configured locale.
func (s *ImportService) WithAutoLocale() *ImportService {
	s.autoLocale = true
	return s
}

// WithExcerptLength sets how much raw text an empty result carries.
func (s *ImportService) WithExcerptLength(n int) *ImportService {
	s.excerptLength = n
	return s
}

// WithRateLimit throttles store writes during Commit.
func (s *ImportService) WithRateLimit(limiter *rate.Limiter) *ImportService {
	s.limiter = limiter
	return s
}

// WithMetrics enables Prometheus counters.
func (s *ImportService) WithMetrics(m *Metrics) *ImportService {
	s.metrics = m
	return s
}

// Preview parses and categorizes a document.
func (s *ImportService) Preview(ctx context.Context, doc parser.Document) (*Preview, error) {
	return s.preview(ctx, doc, nil)
}

// PreviewWithMapping is Preview with user-confirmed tabular columns.
func (s *ImportService) PreviewWithMapping(ctx context.Context, doc parser.Document, m parser.ColumnMapping) (*Preview, error) {
	return s.preview(ctx, doc, &m)
}

func (s *ImportService) preview(ctx context.Context, doc parser.Document, mapping *parser.ColumnMapping) (*Preview, error) {
	_, span := s.tracer.Start(ctx, "import.preview", trace.WithAttributes(
		attribute.String("document.name", doc.Name),
		attribute.String("document.method", string(doc.Method)),
		attribute.Int("document.bytes", len(doc.Data)),
	))
	defer span.End()

	format, err := parser.DetectFormat(doc)
	if err != nil {
		s.metrics.observeParse("", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("document.format", string(format)))

	loc := s.localeFor(doc, format)
	tabular := parser.NewTabularParser(loc)
	if mapping != nil {
		tabular = tabular.WithMapping(*mapping)
	}
	dispatcher := parser.NewDispatcher(loc).
		WithExcerptLength(s.excerptLength).
		WithParser(parser.FormatTabular, tabular)

	txs, err := dispatcher.Parse(doc)
	s.metrics.observeParse(format, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		s.logger.Info("statement produced no preview", "name", doc.Name, "format", format, "error", err)
		return nil, err
	}

	descriptions := make([]string, len(txs))
	for i, tx := range txs {
		descriptions[i] = tx.Description
	}
	for i, label := range s.engine.CategorizeBatch(descriptions) {
		txs[i].Category = label
	}

	p := newPreview(format, loc, txs, s.engine.Taxonomy())
	if format == parser.FormatTabular {
		if m, err := tabular.Inspect(doc); err == nil {
			p.Mapping = &m
		}
	}

	s.metrics.observeParsedRows(format, len(txs))
	span.SetAttributes(attribute.Int("preview.rows", len(txs)))
	s.logger.Info("statement parsed",
		"name", doc.Name,
		"format", format,
		"locale", loc.Tag,
		slog.Int("rows", len(txs)))

	return p, nil
}

func (s *ImportService) localeFor(doc parser.Document, format parser.Format) locale.Locale {
	if !s.autoLocale || format == parser.FormatPDF {
		return s.loc
	}
	dialect := sniffer.ProbeDialect(doc.Data)
	loc, err := locale.ByTag(dialect.LocaleTag())
	if err != nil {
		return s.loc
	}
	return loc
}

// Commit writes preview rows one by one. A failed write is recorded and the
// loop continues. Cancelling ctx abandons the remaining rows, but a write
// already handed to the store always completes.
func (s *ImportService) Commit(ctx context.Context, ownerID uuid.UUID, p *Preview) (*CommitReport, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}

	ctx, span := s.tracer.Start(ctx, "import.commit", trace.WithAttributes(
		attribute.String("owner.id", ownerID.String()),
		attribute.Int("preview.rows", p.Len()),
	))
	defer span.End()

	rows := p.Transactions()
	report := &CommitReport{Total: len(rows)}

	for i, tx := range rows {
		if ctx.Err() != nil {
			report.Abandoned = true
			break
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				report.Abandoned = true
				break
			}
		}

		start := time.Now()
		_, err := s.store.CreateTransaction(context.WithoutCancel(ctx), ownerID, recordFrom(tx, p.Locale.CurrencyCode))
		s.metrics.observeWrite(time.Since(start), err)

		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, CommitFailure{Index: i, Description: tx.Description, Err: err})
			s.logger.Warn("failed to commit transaction",
				slog.Int("index", i),
				"description", tx.Description,
				"error", err)
			continue
		}

		report.Committed++
		report.Span.include(tx.Date)
	}

	span.SetAttributes(
		attribute.Int("commit.committed", report.Committed),
		attribute.Int("commit.failed", report.Failed),
		attribute.Bool("commit.abandoned", report.Abandoned),
	)
	if report.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d rows failed", report.Failed))
	}

	s.logger.Info("import committed",
		"owner", ownerID,
		slog.Int("committed", report.Committed),
		slog.Int("failed", report.Failed),
		slog.Bool("abandoned", report.Abandoned))

	return report, nil
}

func recordFrom(tx parser.ParsedTransaction, currency string) Record {
	return Record{
		Date:        tx.DateString(),
		Description: tx.Description,
		Amount:      tx.Amount,
		Direction:   tx.Direction,
		Category:    tx.Category,
		Currency:    currency,
	}
}
