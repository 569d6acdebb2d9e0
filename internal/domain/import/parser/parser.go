// Package parser turns raw statement exports (OFX/SGML, spreadsheets, PDFs and
// pasted text) into canonical transactions. Every format implements Parser and
// the Dispatcher picks one per document.
package parser

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrEmptyResult         = errors.New("no transactions found")
	ErrFormatNotRecognized = errors.New("format not recognized")
)

// Format tags a RawDocument with the parser that understands it.
type Format string

const (
	FormatOFX      Format = "ofx"
	FormatTabular  Format = "tabular"
	FormatPDF      Format = "pdf"
	FormatFreeform Format = "freeform-text"
)

// Method is how the user handed the document over.
type Method string

const (
	MethodFile  Method = "file"
	MethodPaste Method = "paste"
)

// Document is an immutable raw input: a named upload or pasted text.
type Document struct {
	Name   string
	Method Method
	Data   []byte
}

// NewFileDocument wraps an uploaded file.
func NewFileDocument(name string, data []byte) Document {
	return Document{Name: name, Method: MethodFile, Data: data}
}

// NewPastedDocument wraps text pasted by the user.
func NewPastedDocument(text string) Document {
	return Document{Method: MethodPaste, Data: []byte(text)}
}

// Direction says whether a transaction increases or decreases the balance.
type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// ParsedTransaction is the canonical record every parser emits.
// Amount is always a non-negative magnitude; the sign lives in Direction.
type ParsedTransaction struct {
	Date        time.Time // calendar date, UTC midnight
	Description string
	Amount      decimal.Decimal
	Direction   Direction
	Category    string // set by the categorizer
	BankType    string // OFX TRNTYPE when present
	SourceLine  string // original fragment, for diagnostics
}

const isoDate = "2006-01-02"

// DateString renders the date as YYYY-MM-DD.
func (t ParsedTransaction) DateString() string {
	return t.Date.Format(isoDate)
}

// Signed returns the amount with the direction applied.
func (t ParsedTransaction) Signed() decimal.Decimal {
	if t.Direction == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Parser is implemented by each statement format.
type Parser interface {
	Parse(doc Document) ([]ParsedTransaction, error)
}

// EmptyResultError is returned when a parser ran cleanly but found nothing.
// Err is set when the parser explained the miss, e.g. ErrFormatNotRecognized.
type EmptyResultError struct {
	Format  Format
	Excerpt string // leading raw text, only for text formats
	Err     error
}

func (e *EmptyResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Format, ErrEmptyResult)
}

func (e *EmptyResultError) Is(target error) bool {
	return target == ErrEmptyResult
}

func (e *EmptyResultError) Unwrap() error {
	return e.Err
}

func newTransaction(date time.Time, description string, amount decimal.Decimal, dir Direction, source string) ParsedTransaction {
	return ParsedTransaction{
		Date:        date,
		Description: description,
		Amount:      amount.Abs(),
		Direction:   dir,
		SourceLine:  source,
	}
}

// signDirection maps a signed amount to a direction; zero counts as expense.
func signDirection(amount decimal.Decimal) Direction {
	if amount.IsPositive() {
		return Income
	}
	return Expense
}

func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func excerpt(data []byte, n int) string {
	if n <= 0 || !utf8.Valid(data) {
		return ""
	}
	s := string(data)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
