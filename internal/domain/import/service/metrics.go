package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FACorreiaa/statement-import/internal/domain/import/parser"
)

// Metrics holds the import counters. A nil *Metrics records nothing.
type Metrics struct {
	documents     *prometheus.CounterVec
	parsedRows    *prometheus.CounterVec
	writes        *prometheus.CounterVec
	writeDuration prometheus.Histogram
}

// NewMetrics creates and registers the import metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "documents_total",
			Help:      "Documents handed to the parser, by format and outcome.",
		}, []string{"format", "outcome"}),
		parsedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "parsed_transactions_total",
			Help:      "Transactions extracted into previews, by format.",
		}, []string{"format"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_import",
			Name:      "commit_writes_total",
			Help:      "Store writes issued during commit, by outcome.",
		}, []string{"outcome"}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statement_import",
			Name:      "commit_write_duration_seconds",
			Help:      "Latency of single transaction writes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.documents, m.parsedRows, m.writes, m.writeDuration)
	return m
}

func (m *Metrics) observeParse(format parser.Format, err error) {
	if m == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	m.documents.WithLabelValues(string(format), parseOutcome(err)).Inc()
}

func (m *Metrics) observeParsedRows(format parser.Format, n int) {
	if m == nil {
		return
	}
	m.parsedRows.WithLabelValues(string(format)).Add(float64(n))
}

func (m *Metrics) observeWrite(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.writeDuration.Observe(d.Seconds())
	if err != nil {
		m.writes.WithLabelValues("failed").Inc()
		return
	}
	m.writes.WithLabelValues("committed").Inc()
}

func parseOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, parser.ErrFormatNotRecognized):
		return "not_recognized"
	case errors.Is(err, parser.ErrEmptyResult):
		return "empty"
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return "unsupported"
	default:
		return "error"
	}
}
