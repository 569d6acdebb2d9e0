package parser

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/FACorreiaa/statement-import/pkg/locale"
)

// Fragment is a piece of text placed on a PDF page. Y grows upwards.
type Fragment struct {
	X, Y float64
	Text string
}

// PDFParser rebuilds visual lines from positioned text and keeps the lines
// that carry both a date and an amount.
type PDFParser struct {
	loc     locale.Locale
	now     func() time.Time
	dateRe  *regexp.Regexp
	moneyRe *regexp.Regexp
}

// NewPDFParser creates a PDF parser; dates without a year use the current year.
func NewPDFParser(loc locale.Locale) *PDFParser {
	return &PDFParser{
		loc:     loc,
		now:     time.Now,
		dateRe:  regexp.MustCompile(`(\d{2})/(\d{2})(?:/(\d{4}))?`),
		moneyRe: regexp.MustCompile(loc.MoneyPattern()),
	}
}

// WithClock overrides the clock used for the default year.
func (p *PDFParser) WithClock(now func() time.Time) *PDFParser {
	cp := *p
	cp.now = now
	return &cp
}

// Parse extracts the text layer page by page.
func (p *PDFParser) Parse(doc Document) ([]ParsedTransaction, error) {
	pages, err := extractPages(doc.Data)
	if err != nil {
		return nil, err
	}
	return p.ParsePages(pages), nil
}

// ParsePages parses already extracted fragments, one slice per page.
func (p *PDFParser) ParsePages(pages [][]Fragment) []ParsedTransaction {
	var txs []ParsedTransaction
	for _, fragments := range pages {
		txs = append(txs, p.ParseLines(ReconstructLines(fragments))...)
	}
	return txs
}

// ParseLines keeps lines matching both the date and the money pattern.
func (p *PDFParser) ParseLines(lines []string) []ParsedTransaction {
	var txs []ParsedTransaction
	for _, line := range lines {
		if tx, ok := p.parseLine(line); ok {
			txs = append(txs, tx)
		}
	}
	return txs
}

func (p *PDFParser) parseLine(line string) (ParsedTransaction, bool) {
	dm := p.dateRe.FindStringSubmatch(line)
	rawAmount := p.moneyRe.FindString(line)
	if dm == nil || rawAmount == "" {
		return ParsedTransaction{}, false
	}

	first, _ := strconv.Atoi(dm[1])
	second, _ := strconv.Atoi(dm[2])
	day, month := first, second
	if !p.loc.DayFirst {
		day, month = second, first
	}
	year := p.now().Year()
	if dm[3] != "" {
		year, _ = strconv.Atoi(dm[3])
	}
	date, ok := calendarDate(year, time.Month(month), day)
	if !ok {
		return ParsedTransaction{}, false
	}

	amount, err := p.loc.ParseAmount(rawAmount)
	if err != nil {
		return ParsedTransaction{}, false
	}

	rest := strings.Replace(line, dm[0], "", 1)
	rest = strings.Replace(rest, rawAmount, "", 1)
	description := strings.Join(strings.Fields(rest), " ")
	if description == "" {
		description = p.loc.Untitled
	}

	dir := Income
	if amount.IsNegative() {
		dir = Expense
	}
	if p.loc.HasCreditKeyword(line) {
		dir = Income
	}

	return newTransaction(date, description, amount, dir, line), true
}

// ReconstructLines buckets fragments by rounded Y, orders buckets top to
// bottom and joins each bucket's text left to right with single spaces.
func ReconstructLines(fragments []Fragment) []string {
	buckets := make(map[int][]Fragment)
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		y := int(math.Round(f.Y))
		buckets[y] = append(buckets[y], f)
	}

	ys := make([]int, 0, len(buckets))
	for y := range buckets {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ys)))

	lines := make([]string, 0, len(ys))
	for _, y := range ys {
		row := buckets[y]
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })

		parts := make([]string, len(row))
		for i, f := range row {
			parts[i] = strings.TrimSpace(f.Text)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}

func extractPages(data []byte) (pages [][]Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF reader crashed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, wordsFromGlyphs(page.Content().Text))
	}
	return pages, nil
}

// wordsFromGlyphs merges the per-glyph text runs the PDF library returns into
// word fragments: glyphs on the same baseline closer than a fraction of the
// font size belong to the same word.
func wordsFromGlyphs(glyphs []pdf.Text) []Fragment {
	rows := make(map[int][]pdf.Text)
	for _, g := range glyphs {
		y := int(math.Round(g.Y))
		rows[y] = append(rows[y], g)
	}

	var words []Fragment
	for _, row := range rows {
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })

		var (
			current Fragment
			end     float64
			open    bool
		)
		flush := func() {
			if open && strings.TrimSpace(current.Text) != "" {
				words = append(words, current)
			}
			open = false
		}

		for _, g := range row {
			if strings.TrimSpace(g.S) == "" {
				flush()
				continue
			}
			width := g.W
			if width <= 0 {
				width = g.FontSize * 0.5 * float64(len([]rune(g.S)))
			}
			gap := math.Max(g.FontSize*0.2, 1)
			if open && g.X-end <= gap {
				current.Text += g.S
			} else {
				flush()
				current = Fragment{X: g.X, Y: g.Y, Text: g.S}
				open = true
			}
			end = g.X + width
		}
		flush()
	}
	return words
}
