package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-import/pkg/locale"
)

const sgmlStatement = `OFXHEADER:100
DATA:OFXSGML
<OFX>
<BANKMSGSRSV1><STMTTRNRS><STMTRS>
<CURDEF>BRL
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[-3:GMT]
<TRNAMT>-45.90
<MEMO>SUPERMERCADO BOM PRECO
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240116
<TRNAMT>1500,00
<NAME>TED EMPRESA LTDA
</STMTTRN>
<STMTTRN>
<TRNTYPE>OTHER
<DTPOSTED>20240117
<TRNAMT>0.00
<MEMO>DEPOSITO IDENTIFICADO
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<TRNAMT>-10.00
<MEMO>NO DATE
</STMTTRN>
</BANKTRANLIST>
</STMTRS></STMTTRNRS></BANKMSGSRSV1>
</OFX>`

func TestOFXParser_Parse(t *testing.T) {
	p := NewOFXParser(locale.PtBR)

	txs, err := p.Parse(NewFileDocument("extrato.ofx", []byte(sgmlStatement)))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	t.Run("debit with timezone suffix", func(t *testing.T) {
		tx := txs[0]
		assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), tx.Date)
		assert.Equal(t, "SUPERMERCADO BOM PRECO", tx.Description)
		assert.Equal(t, "45.90", tx.Amount.StringFixed(2))
		assert.Equal(t, Expense, tx.Direction)
		assert.Equal(t, "DEBIT", tx.BankType)
	})

	t.Run("comma decimal and name fallback", func(t *testing.T) {
		tx := txs[1]
		assert.Equal(t, "2024-01-16", tx.DateString())
		assert.Equal(t, "TED EMPRESA LTDA", tx.Description)
		assert.Equal(t, "1500.00", tx.Amount.StringFixed(2))
		assert.Equal(t, Income, tx.Direction)
	})

	t.Run("credit keyword turns zero amount into income", func(t *testing.T) {
		assert.Equal(t, Income, txs[2].Direction)
		assert.True(t, txs[2].Amount.IsZero())
	})
}

func TestOFXParser_XMLAndFallbacks(t *testing.T) {
	doc := `<OFX><stmttrn><TRNTYPE>PAYMENT</TRNTYPE><DTPOSTED>20240301</DTPOSTED><TRNAMT>-12.5</TRNAMT></stmttrn>` +
		`<STMTTRN><DTPOSTED>2024</DTPOSTED><TRNAMT>-1</TRNAMT></STMTTRN>` +
		`<STMTTRN><DTPOSTED>20240302</DTPOSTED><TRNAMT>abc</TRNAMT></STMTTRN></OFX>`

	txs, err := NewOFXParser(locale.PtBR).Parse(NewFileDocument("x.xml", []byte(doc)))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, locale.PtBR.Untitled, txs[0].Description)
	assert.Equal(t, "PAYMENT", txs[0].BankType)
	assert.Equal(t, "-12.5", txs[0].Signed().String())
}

func TestOFXParser_NoBlocks(t *testing.T) {
	txs, err := NewOFXParser(locale.PtBR).Parse(NewFileDocument("x.ofx", []byte("<OFX></OFX>")))
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestParseOFXDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"20240115", "2024-01-15", true},
		{"20240115120000.000[-3:BRT]", "2024-01-15", true},
		{" 20241231235959 ", "2024-12-31", true},
		{"20240230", "", false},
		{"2024011", "", false},
		{"[-3:GMT]", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, ok := parseOFXDate(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, d.Format("2006-01-02"))
			}
		})
	}
}
