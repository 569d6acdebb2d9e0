package parser

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/statement-import/pkg/locale"
)

const (
	headerScanRows = 15
	statsScanRows  = 25
	minDateSerial  = 20000 // 1954-10-03
	maxDateSerial  = 60000 // 2064-04-08
	minTextLength  = 5
)

// MappingSource records how a ColumnMapping was obtained.
type MappingSource string

const (
	SourceHeader     MappingSource = "header"
	SourceStatistics MappingSource = "statistics"
	SourceMixed      MappingSource = "mixed"
	SourceManual     MappingSource = "manual"
)

// ColumnMapping maps logical fields to column indices (-1 when absent). It is
// built once per document and can be inspected or replaced before parsing.
type ColumnMapping struct {
	DateCol   int
	DescCol   int
	AmountCol int // single signed-amount layout
	CreditCol int // dual layout
	DebitCol  int // dual layout
	HeaderRow int // rows up to and including this one are skipped; -1 if none
	Source    MappingSource
}

// NewColumnMapping returns a mapping with every field unresolved.
func NewColumnMapping() ColumnMapping {
	return ColumnMapping{DateCol: -1, DescCol: -1, AmountCol: -1, CreditCol: -1, DebitCol: -1, HeaderRow: -1}
}

// IsDualEntry reports whether separate credit and debit columns are used.
func (m ColumnMapping) IsDualEntry() bool {
	return m.CreditCol >= 0 && m.DebitCol >= 0
}

// Complete reports whether rows can be parsed with this mapping.
func (m ColumnMapping) Complete() bool {
	return m.DateCol >= 0 && m.DescCol >= 0 && (m.IsDualEntry() || m.AmountCol >= 0)
}

func (m ColumnMapping) assigned(col int) bool {
	return col == m.DateCol || col == m.DescCol || col == m.AmountCol || col == m.CreditCol || col == m.DebitCol
}

// InferColumns runs the header-label phase, then fills whatever is still
// unresolved from per-column statistics over the first rows.
func InferColumns(grid Grid, loc locale.Locale) ColumnMapping {
	m := NewColumnMapping()
	fromHeader := inferFromHeaders(grid, loc, &m)

	// A lone credit or debit column cannot drive the dual layout.
	if !m.IsDualEntry() {
		m.CreditCol, m.DebitCol = -1, -1
	}

	if m.Complete() {
		m.Source = SourceHeader
		return m
	}

	inferFromStatistics(grid, loc, &m)
	if fromHeader {
		m.Source = SourceMixed
	} else {
		m.Source = SourceStatistics
	}
	return m
}

// inferFromHeaders only trusts rows that name at least two roles, so a title
// line such as "Data de emissão: ..." is not taken for the header.
func inferFromHeaders(grid Grid, loc locale.Locale, m *ColumnMapping) bool {
	labels := loc.Headers
	found := false

	for i := 0; i < len(grid) && i < headerScanRows; i++ {
		cells := make([]string, len(grid[i]))
		for j, c := range grid[i] {
			cells[j] = locale.Fold(strings.TrimSpace(c.Text))
		}

		candidate := *m
		if candidate.DateCol < 0 {
			candidate.DateCol = findLabel(cells, &candidate, func(c string) bool { return matchesExactOrPrefix(c, labels.Date) })
		}
		if candidate.DescCol < 0 {
			candidate.DescCol = findLabel(cells, &candidate, func(c string) bool { return containsLabel(c, labels.Description) })
		}
		if candidate.CreditCol < 0 {
			candidate.CreditCol = findLabel(cells, &candidate, func(c string) bool { return containsLabel(c, labels.Credit) })
		}
		if candidate.DebitCol < 0 {
			candidate.DebitCol = findLabel(cells, &candidate, func(c string) bool { return containsLabel(c, labels.Debit) })
		}
		if candidate.AmountCol < 0 {
			candidate.AmountCol = findLabel(cells, &candidate, func(c string) bool { return matchesExact(c, labels.Amount) })
		}

		if resolvedRoles(candidate)-resolvedRoles(*m) < 2 {
			continue
		}

		candidate.HeaderRow = i
		*m = candidate
		found = true

		if m.Complete() {
			break
		}
	}
	return found
}

func resolvedRoles(m ColumnMapping) int {
	n := 0
	for _, col := range []int{m.DateCol, m.DescCol, m.AmountCol, m.CreditCol, m.DebitCol} {
		if col >= 0 {
			n++
		}
	}
	return n
}

func findLabel(cells []string, m *ColumnMapping, match func(string) bool) int {
	for j, c := range cells {
		if c == "" || m.assigned(j) {
			continue
		}
		if match(c) {
			return j
		}
	}
	return -1
}

func matchesExact(cell string, labels []string) bool {
	for _, l := range labels {
		if cell == l {
			return true
		}
	}
	return false
}

func matchesExactOrPrefix(cell string, labels []string) bool {
	for _, l := range labels {
		if cell == l || strings.HasPrefix(cell, l+" ") {
			return true
		}
	}
	return false
}

func containsLabel(cell string, labels []string) bool {
	for _, l := range labels {
		if strings.Contains(cell, l) {
			return true
		}
	}
	return false
}

type columnStats struct {
	dates   int
	moneys  int
	strings int
}

func inferFromStatistics(grid Grid, loc locale.Locale, m *ColumnMapping) {
	datePattern := statsDatePattern(loc)
	moneyPattern := statsMoneyPattern(loc)

	var stats []columnStats
	for i := 0; i < len(grid) && i < statsScanRows; i++ {
		for j, cell := range grid[i] {
			for len(stats) <= j {
				stats = append(stats, columnStats{})
			}
			text := strings.TrimSpace(cell.Text)
			if text == "" {
				continue
			}

			isDate := datePattern.MatchString(text) ||
				(cell.Numeric && cell.Number > minDateSerial && cell.Number < maxDateSerial)
			isMoney := cell.Numeric || moneyPattern.MatchString(text)

			if isDate {
				stats[j].dates++
			}
			if isMoney {
				stats[j].moneys++
			}
			if !isDate && !isMoney && len([]rune(text)) > minTextLength {
				stats[j].strings++
			}
		}
	}

	if m.DateCol < 0 {
		m.DateCol = argmax(stats, m, func(s columnStats) int { return s.dates })
	}
	if m.DescCol < 0 {
		m.DescCol = argmax(stats, m, func(s columnStats) int { return s.strings })
	}
	if !m.IsDualEntry() && m.AmountCol < 0 {
		m.AmountCol = argmax(stats, m, func(s columnStats) int { return s.moneys })
	}
}

// argmax returns the unassigned column with the highest positive score; ties keep the leftmost.
func argmax(stats []columnStats, m *ColumnMapping, score func(columnStats) int) int {
	best, bestScore := -1, 0
	for j, s := range stats {
		if m.assigned(j) {
			continue
		}
		if v := score(s); v > bestScore {
			best, bestScore = j, v
		}
	}
	return best
}

func statsDatePattern(loc locale.Locale) *regexp.Regexp {
	day := `(0?[1-9]|[12][0-9]|3[01])`
	month := `(0?[1-9]|1[012])`
	if loc.DayFirst {
		return regexp.MustCompile(`^` + day + `[/-]` + month + `[/-]\d{4}|^\d{4}-\d{2}-\d{2}`)
	}
	return regexp.MustCompile(`^` + month + `[/-]` + day + `[/-]\d{4}|^\d{4}-\d{2}-\d{2}`)
}

func statsMoneyPattern(loc locale.Locale) *regexp.Regexp {
	sym := regexp.QuoteMeta(loc.CurrencySymbol)
	return regexp.MustCompile(`^-?\s*(?:` + sym + `)?\s*-?\d+(?:[.,]\d{3})*[.,]\d{2}$`)
}
