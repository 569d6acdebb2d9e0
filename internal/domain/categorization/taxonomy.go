// Package categorization assigns one label of a fixed, ordered taxonomy to
// every transaction description.
package categorization

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyTaxonomy   = errors.New("taxonomy has no categories")
	ErrUnknownCategory = errors.New("unknown category")
)

// Default labels, in match order.
const (
	Food        = "Food"
	Transport   = "Transport"
	Housing     = "Housing"
	Health      = "Health"
	Leisure     = "Leisure"
	Shopping    = "Shopping"
	Salary      = "Salary"
	Investments = "Investments"
	General     = "General"
)

// Category is a label and the lower-case substrings that trigger it.
type Category struct {
	Label    string
	Keywords []string
}

// Taxonomy is an ordered list of categories plus a fallback label. Earlier
// categories win when a description triggers several. A Taxonomy is never
// mutated after construction, so it can be shared between goroutines.
type Taxonomy struct {
	categories []Category
	fallback   string
}

// NewTaxonomy copies categories and normalises keywords to lower case.
func NewTaxonomy(categories []Category, fallback string) (*Taxonomy, error) {
	if len(categories) == 0 {
		return nil, ErrEmptyTaxonomy
	}
	if strings.TrimSpace(fallback) == "" {
		return nil, errors.New("fallback label is required")
	}

	seen := make(map[string]bool, len(categories)+1)
	seen[strings.ToLower(fallback)] = true

	cats := make([]Category, 0, len(categories))
	for _, c := range categories {
		key := strings.ToLower(strings.TrimSpace(c.Label))
		if key == "" {
			return nil, errors.New("category label is required")
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate category %q", c.Label)
		}
		seen[key] = true

		keywords := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		cats = append(cats, Category{Label: c.Label, Keywords: keywords})
	}

	return &Taxonomy{categories: cats, fallback: fallback}, nil
}

// DefaultTaxonomy is tuned for Brazilian bank statements.
func DefaultTaxonomy() *Taxonomy {
	t, err := NewTaxonomy([]Category{
		{Food, []string{"ifood", "uber eats", "restaurante", "padaria", "mercado", "supermercado", "burger", "pizza", "mcdonalds", "outback", "starbucks", "fome"}},
		{Transport, []string{"uber", "99", "posto", "combustivel", "gasolina", "estacionamento", "pedagio", "sem parar", "veloe"}},
		{Housing, []string{"aluguel", "condominio", "luz", "energia", "agua", "internet", "claro", "vivo", "tim", "oi", "gás"}},
		{Health, []string{"farmacia", "drogasil", "pague menos", "medico", "hospital", "dentista", "exame", "laboratorio"}},
		{Leisure, []string{"netflix", "spotify", "cinema", "prime video", "steam", "playstation", "xbox", "hotel", "airbnb", "bar"}},
		{Shopping, []string{"amazon", "mercadolivre", "shopee", "shein", "zara", "renner", "magalu", "loja"}},
		{Salary, []string{"salario", "pagamento", "ted recebida", "pix recebido", "proventos"}},
		{Investments, []string{"corretora", "xp", "nuinvest", "rico", "b3", "tesouro"}},
	}, General)
	if err != nil {
		panic(err)
	}
	return t
}

// Labels returns every label in match order, fallback last.
func (t *Taxonomy) Labels() []string {
	labels := make([]string, 0, len(t.categories)+1)
	for _, c := range t.categories {
		labels = append(labels, c.Label)
	}
	return append(labels, t.fallback)
}

// Fallback is the label used when nothing matches.
func (t *Taxonomy) Fallback() string {
	return t.fallback
}

// Categories returns a copy of the ordered categories.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Label: c.Label, Keywords: append([]string(nil), c.Keywords...)}
	}
	return out
}
