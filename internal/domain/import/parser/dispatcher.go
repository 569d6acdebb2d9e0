package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/statement-import/pkg/locale"
)

const defaultExcerptLength = 600

// DetectFormat resolves the format from the paste method or the file extension.
// There is no content sniffing: a misnamed file goes to the wrong parser.
func DetectFormat(doc Document) (Format, error) {
	if doc.Method == MethodPaste {
		return FormatFreeform, nil
	}

	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".ofx", ".xml":
		return FormatOFX, nil
	case ".xlsx", ".xls", ".csv":
		return FormatTabular, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Name)
	}
}

// Dispatcher routes documents to the parser registered for their format.
type Dispatcher struct {
	parsers       map[Format]Parser
	excerptLength int
}

// NewDispatcher registers the built-in parsers for the given locale.
func NewDispatcher(loc locale.Locale) *Dispatcher {
	return &Dispatcher{
		parsers: map[Format]Parser{
			FormatOFX:      NewOFXParser(loc),
			FormatTabular:  NewTabularParser(loc),
			FormatPDF:      NewPDFParser(loc),
			FormatFreeform: NewFreeformParser(loc),
		},
		excerptLength: defaultExcerptLength,
	}
}

// WithParser replaces the parser used for a format.
func (d *Dispatcher) WithParser(f Format, p Parser) *Dispatcher {
	d.parsers[f] = p
	return d
}

// WithExcerptLength sets how much raw text an EmptyResultError carries.
func (d *Dispatcher) WithExcerptLength(n int) *Dispatcher {
	d.excerptLength = n
	return d
}

// Parse detects the format and runs the matching parser. A clean run with
// zero transactions becomes an *EmptyResultError.
func (d *Dispatcher) Parse(doc Document) ([]ParsedTransaction, error) {
	format, err := DetectFormat(doc)
	if err != nil {
		return nil, err
	}

	p, ok := d.parsers[format]
	if !ok {
		return nil, fmt.Errorf("%w: no parser registered for %s", ErrUnsupportedFormat, format)
	}

	txs, err := p.Parse(doc)
	if errors.Is(err, ErrFormatNotRecognized) {
		return nil, &EmptyResultError{Format: format, Excerpt: excerpt(doc.Data, d.excerptLength), Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}

	if len(txs) == 0 {
		empty := &EmptyResultError{Format: format}
		if format != FormatPDF {
			empty.Excerpt = excerpt(doc.Data, d.excerptLength)
		}
		return nil, empty
	}

	return txs, nil
}
