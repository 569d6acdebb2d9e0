// Package sniffer guesses low-level properties of text statements: the CSV
// delimiter and the regional dialect (decimal separator, date order, currency)
// used to pick a locale when the caller did not name one.
package sniffer

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

const maxProbeLines = 50

var (
	amountToken  = regexp.MustCompile(`-?\d[\d.,]*[.,]\d{2}\b`)
	dateToken    = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{2,4})\b`)
	ofxCurrency  = regexp.MustCompile(`(?i)<CURDEF>\s*([A-Z]{3})`)
	currencyTags = map[string]string{
		"BRL": "pt-BR",
		"USD": "en-US",
	}
)

// RegionalDialect represents inferred regional formatting for amounts and dates
type RegionalDialect struct {
	DecimalSeparator   rune    // '.' (US) or ',' (BR/EU)
	ThousandsSeparator rune    // ',' (US) or '.' (BR/EU)
	DayFirst           bool    // DD/MM dates seen
	CurrencyHint       string  // "BRL", "USD", "EUR" if detected
	Confidence         float64 // 0.0-1.0
	CommaDecimal       bool
}

// LocaleTag maps the dialect to a built-in locale tag.
func (d *RegionalDialect) LocaleTag() string {
	if tag, ok := currencyTags[d.CurrencyHint]; ok {
		return tag
	}
	if d.CommaDecimal || d.DayFirst {
		return "pt-BR"
	}
	return "en-US"
}

// ProbeDialect inspects the first lines of a text document for amount, date
// and currency clues. An OFX <CURDEF> wins over everything else.
func ProbeDialect(sample []byte) *RegionalDialect {
	dialect := &RegionalDialect{
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		Confidence:         0.5,
	}

	if m := ofxCurrency.FindSubmatch(sample); m != nil {
		dialect.CurrencyHint = strings.ToUpper(string(m[1]))
		dialect.Confidence = 1
		if dialect.CurrencyHint == "BRL" || dialect.CurrencyHint == "EUR" {
			dialect.CommaDecimal = true
			dialect.DayFirst = true
			dialect.DecimalSeparator, dialect.ThousandsSeparator = ',', '.'
		}
		return dialect
	}

	commaHints, dotHints := 0, 0
	dayFirst, monthFirst := false, false

	for i, line := range bytes.Split(sample, []byte("\n")) {
		if i >= maxProbeLines {
			break
		}
		text := string(line)

		for _, tok := range amountToken.FindAllString(text, -1) {
			switch analyzeAmountFormat(tok) {
			case 1:
				commaHints++
			case -1:
				dotHints++
			}
		}

		for _, m := range dateToken.FindAllStringSubmatch(text, -1) {
			first, _ := strconv.Atoi(m[1])
			second, _ := strconv.Atoi(m[2])
			switch {
			case first > 12 && first <= 31:
				dayFirst = true
			case second > 12 && second <= 31:
				monthFirst = true
			}
		}

		switch {
		case strings.Contains(text, "R$") || strings.Contains(text, "BRL"):
			dialect.CurrencyHint = "BRL"
			commaHints++
		case strings.Contains(text, "€") || strings.Contains(text, "EUR"):
			if dialect.CurrencyHint == "" {
				dialect.CurrencyHint = "EUR"
			}
			commaHints++
		case strings.Contains(text, "$"):
			if dialect.CurrencyHint == "" {
				dialect.CurrencyHint = "USD"
			}
			dotHints++
		}
	}

	if commaHints > dotHints {
		dialect.DecimalSeparator, dialect.ThousandsSeparator = ',', '.'
		dialect.CommaDecimal = true
	}

	if total := commaHints + dotHints; total > 0 {
		winning := max(commaHints, dotHints)
		dialect.Confidence = float64(winning) / float64(total)
	}

	switch {
	case dayFirst && !monthFirst:
		dialect.DayFirst = true
	case !dayFirst && monthFirst:
		dialect.DayFirst = false
	default:
		dialect.DayFirst = dialect.CommaDecimal
	}

	return dialect
}

// analyzeAmountFormat returns: >0 for comma-decimal, <0 for dot-decimal, 0 for ambiguous
func analyzeAmountFormat(val string) int {
	cleaned := strings.TrimPrefix(val, "-")
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1 // 1.234,56
		}
		return -1 // 1,234.56
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
	}
	return 0
}

// DetectDelimiter picks the CSV delimiter that appears most often across the
// first lines. Comma is the fallback.
func DetectDelimiter(data []byte) rune {
	delimiters := []rune{';', '\t', ',', '|'}
	counts := make(map[rune]int, len(delimiters))

	lines := bytes.Split(data, []byte("\n"))
	seen := 0
	for i, raw := range lines {
		if seen >= maxProbeLines {
			break
		}
		line := cleanLine(string(raw), i == 0)
		if line == "" {
			continue
		}
		seen++
		for _, d := range delimiters {
			counts[d] += strings.Count(line, string(d))
		}
	}

	best, bestCount := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}
