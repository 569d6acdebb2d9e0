package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-import/pkg/locale"
)

var (
	stmtTrnOpen  = regexp.MustCompile(`(?i)<STMTTRN>`)
	stmtTrnClose = regexp.MustCompile(`(?i)</STMTTRN>`)

	ofxTags = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{"TRNTYPE", "DTPOSTED", "TRNAMT", "MEMO", "NAME"} {
		// SGML leaves tags unclosed: a value runs to the next tag or line break.
		ofxTags[tag] = regexp.MustCompile(fmt.Sprintf(`(?i)<%s>([^<\r\n]*)`, tag))
	}
}

// OFXParser reads OFX exports without building a DOM, so SGML files with
// unclosed tags parse the same way as well-formed XML.
type OFXParser struct {
	loc locale.Locale
}

// NewOFXParser creates an OFX parser.
func NewOFXParser(loc locale.Locale) *OFXParser {
	return &OFXParser{loc: loc}
}

// Parse emits one transaction per <STMTTRN> block that has both a posted date
// and an amount. Other blocks are dropped.
func (p *OFXParser) Parse(doc Document) ([]ParsedTransaction, error) {
	blocks := stmtTrnOpen.Split(string(doc.Data), -1)
	if len(blocks) < 2 {
		return nil, nil
	}

	txs := make([]ParsedTransaction, 0, len(blocks)-1)
	for _, block := range blocks[1:] {
		if end := stmtTrnClose.FindStringIndex(block); end != nil {
			block = block[:end[0]]
		}
		if tx, ok := p.parseBlock(block); ok {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (p *OFXParser) parseBlock(block string) (ParsedTransaction, bool) {
	dateRaw := ofxField(block, "DTPOSTED")
	amountRaw := ofxField(block, "TRNAMT")
	if dateRaw == "" || amountRaw == "" {
		return ParsedTransaction{}, false
	}

	date, ok := parseOFXDate(dateRaw)
	if !ok {
		return ParsedTransaction{}, false
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(amountRaw, ",", "."))
	if err != nil {
		return ParsedTransaction{}, false
	}

	description := ofxField(block, "MEMO")
	if description == "" {
		description = ofxField(block, "NAME")
	}
	if description == "" {
		description = p.loc.Untitled
	}

	dir := signDirection(amount)
	if dir == Expense && p.loc.HasCreditKeyword(description) {
		dir = Income
	}

	tx := newTransaction(date, description, amount, dir, strings.TrimSpace(block))
	tx.BankType = strings.ToUpper(ofxField(block, "TRNTYPE"))
	return tx, true
}

func ofxField(block, tag string) string {
	m := ofxTags[tag].FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// parseOFXDate reads YYYYMMDD[hhmmss[.xxx]][tz]; everything from "[" is dropped.
func parseOFXDate(raw string) (time.Time, bool) {
	if i := strings.IndexByte(raw, '['); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	if len(raw) < 8 {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", raw[:8])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
