package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/FACorreiaa/statement-import/pkg/locale"
)

var freeformDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FreeformParser reads pasted text made of repeating three-line blocks:
//
//	NETFLIX.COM
//	2024-02-05
//	- R$ 39,90
type FreeformParser struct {
	loc      locale.Locale
	amountRe *regexp.Regexp
}

// NewFreeformParser creates a paste-mode parser for the locale's currency.
func NewFreeformParser(loc locale.Locale) *FreeformParser {
	pattern := `(-?)\s*` + regexp.QuoteMeta(loc.CurrencySymbol) + `\s*([\d` +
		regexp.QuoteMeta(string(loc.ThousandsSeparator)) + `]+` +
		regexp.QuoteMeta(string(loc.DecimalSeparator)) + `\d{2})`
	return &FreeformParser{loc: loc, amountRe: regexp.MustCompile(pattern)}
}

// Parse scans a sliding window of three non-empty lines. Matches are greedy
// and never overlap. No match at all is ErrFormatNotRecognized.
func (p *FreeformParser) Parse(doc Document) ([]ParsedTransaction, error) {
	lines := nonEmptyLines(string(doc.Data))

	var txs []ParsedTransaction
	for i := 0; i+2 < len(lines); {
		tx, ok := p.parseBlock(lines[i], lines[i+1], lines[i+2])
		if !ok {
			i++
			continue
		}
		txs = append(txs, tx)
		i += 3
	}

	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: expected merchant, YYYY-MM-DD and %s amount lines",
			ErrFormatNotRecognized, p.loc.CurrencySymbol)
	}
	return txs, nil
}

func (p *FreeformParser) parseBlock(merchant, dateLine, amountLine string) (ParsedTransaction, bool) {
	if !freeformDate.MatchString(dateLine) {
		return ParsedTransaction{}, false
	}
	date, err := time.Parse(isoDate, dateLine)
	if err != nil {
		return ParsedTransaction{}, false
	}

	m := p.amountRe.FindStringSubmatch(amountLine)
	if m == nil {
		return ParsedTransaction{}, false
	}
	amount, err := p.loc.ParseAmount(m[2])
	if err != nil {
		return ParsedTransaction{}, false
	}

	dir := Income
	if m[1] == "-" || strings.HasPrefix(amountLine, "-") {
		dir = Expense
	}

	source := strings.Join([]string{merchant, dateLine, amountLine}, "\n")
	return newTransaction(date, merchant, amount, dir, source), true
}

func nonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
