// Package locale describes the regional conventions a statement is written in:
// number separators, date ordering, currency and the vocabulary banks use for
// credits, balance lines and column headers.
package locale

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptyAmount   = errors.New("empty amount")
	ErrUnknownLocale = errors.New("unknown locale")
)

// HeaderLabels holds the folded header texts that identify each tabular column role.
type HeaderLabels struct {
	Date        []string // exact match, or "<label> " prefix
	Description []string // substring match
	Credit      []string // substring match
	Debit       []string // substring match
	Amount      []string // exact match
}

// Locale is passed explicitly to every parser. All keyword slices hold folded
// (lower-case, accent-free) text.
type Locale struct {
	Tag                string
	DecimalSeparator   rune
	ThousandsSeparator rune
	DayFirst           bool
	CurrencyCode       string
	CurrencySymbol     string
	CreditKeywords     []string
	ExclusionMarkers   []string
	Headers            HeaderLabels
	Untitled           string
	DateLayouts        []string // tried in order for free-form date strings
}

// PtBR is the Brazilian Portuguese locale used by the default configuration.
var PtBR = Locale{
	Tag:                "pt-BR",
	DecimalSeparator:   ',',
	ThousandsSeparator: '.',
	DayFirst:           true,
	CurrencyCode:       "BRL",
	CurrencySymbol:     "R$",
	CreditKeywords:     []string{"recebido", "credito", "deposito"},
	ExclusionMarkers:   []string{"saldo anterior", "sdo do dia", "saldo do dia", "total"},
	Headers: HeaderLabels{
		Date:        []string{"data", "dt.", "posted date", "date"},
		Description: []string{"descricao", "historico", "lancamento", "memo", "description"},
		Credit:      []string{"credito", "entradas", "credit"},
		Debit:       []string{"debito", "saidas", "debit"},
		Amount:      []string{"valor", "amount"},
	},
	Untitled: "Sem descrição",
	DateLayouts: []string{
		"2006-01-02",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"02.01.2006",
		"2006/01/02",
		"02/01/06",
	},
}

// EnUS covers US-formatted exports (1,234.56 and month-first dates).
var EnUS = Locale{
	Tag:                "en-US",
	DecimalSeparator:   '.',
	ThousandsSeparator: ',',
	DayFirst:           false,
	CurrencyCode:       "USD",
	CurrencySymbol:     "$",
	CreditKeywords:     []string{"deposit", "credit", "received"},
	ExclusionMarkers:   []string{"opening balance", "previous balance", "daily balance", "total"},
	Headers: HeaderLabels{
		Date:        []string{"date", "posted date", "transaction date"},
		Description: []string{"description", "memo", "details", "payee"},
		Credit:      []string{"credit", "deposits"},
		Debit:       []string{"debit", "withdrawals"},
		Amount:      []string{"amount", "value"},
	},
	Untitled: "No description",
	DateLayouts: []string{
		"2006-01-02",
		"2006-01-02T15:04:05Z07:00",
		"Jan 2, 2006",
		"2 Jan 2006",
		"01/02/06",
	},
}

var builtins = map[string]Locale{
	"pt-br": PtBR,
	"en-us": EnUS,
}

// ByTag returns a built-in locale. Tags are case-insensitive and accept "_" for "-".
func ByTag(tag string) (Locale, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	if l, ok := builtins[key]; ok {
		return l, nil
	}
	return Locale{}, fmt.Errorf("%w: %q", ErrUnknownLocale, tag)
}

// Fold lower-cases s and strips combining marks, so "Crédito" folds to "credito".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// ParseAmount parses a locale-formatted currency string ("R$ 1.234,56", "-50,00").
// Currency symbols and whitespace are ignored.
func (l Locale) ParseAmount(s string) (decimal.Decimal, error) {
	clean := s
	if l.CurrencySymbol != "" {
		clean = strings.ReplaceAll(clean, l.CurrencySymbol, "")
	}
	clean = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, clean)
	clean = strings.TrimPrefix(clean, "+")
	if clean == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	if l.isLoneDecimalPoint(clean) {
		// "45.90" in a pt-BR export: a group of one or two digits is never thousands.
		clean = strings.Replace(clean, string(l.ThousandsSeparator), ".", 1)
	} else {
		clean = strings.ReplaceAll(clean, string(l.ThousandsSeparator), "")
	}
	if l.DecimalSeparator != '.' {
		clean = strings.ReplaceAll(clean, string(l.DecimalSeparator), ".")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// isLoneDecimalPoint reports whether s uses the thousands separator once, with
// only one or two digits after it, and no decimal separator.
func (l Locale) isLoneDecimalPoint(s string) bool {
	sep := string(l.ThousandsSeparator)
	if strings.ContainsRune(s, l.DecimalSeparator) || strings.Count(s, sep) != 1 {
		return false
	}
	tail := s[strings.Index(s, sep)+len(sep):]
	if len(tail) == 0 || len(tail) > 2 {
		return false
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MoneyPattern is the regular expression for a strictly grouped amount,
// e.g. -?\d{1,3}(\.\d{3})*,\d{2} for pt-BR.
func (l Locale) MoneyPattern() string {
	return `-?\d{1,3}(?:` + regexp.QuoteMeta(string(l.ThousandsSeparator)) + `\d{3})*` +
		regexp.QuoteMeta(string(l.DecimalSeparator)) + `\d{2}`
}

// HasCreditKeyword reports whether text mentions a credit/deposit keyword.
func (l Locale) HasCreditKeyword(text string) bool {
	return containsAny(Fold(text), l.CreditKeywords)
}

// IsExcluded reports whether a description is a balance or total line rather than a transaction.
func (l Locale) IsExcluded(description string) bool {
	return containsAny(Fold(description), l.ExclusionMarkers)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
