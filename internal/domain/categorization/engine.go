package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// Engine matches a description against every keyword of the taxonomy in a
// single pass using the Aho-Corasick algorithm, then keeps the hit whose
// category comes first in taxonomy order.
type Engine struct {
	taxonomy *Taxonomy
	matcher  *ahocorasick.Matcher
	owners   []int      // keyword index -> category index
	mu       sync.Mutex // the matcher keeps per-call dedup state
}

// NewEngine builds the matcher. A keyword listed under several categories
// belongs to the earliest one.
func NewEngine(t *Taxonomy) *Engine {
	e := &Engine{taxonomy: t}

	seen := make(map[string]bool)
	var patterns [][]byte
	for ci, c := range t.categories {
		for _, k := range c.Keywords {
			if seen[k] {
				continue
			}
			seen[k] = true
			patterns = append(patterns, []byte(k))
			e.owners = append(e.owners, ci)
		}
	}

	if len(patterns) > 0 {
		e.matcher = ahocorasick.NewMatcher(patterns)
	}
	return e
}

// Taxonomy returns the taxonomy the engine was built from.
func (e *Engine) Taxonomy() *Taxonomy {
	return e.taxonomy
}

// Categorize always returns exactly one label.
func (e *Engine) Categorize(description string) string {
	if best := e.match(strings.ToLower(description)); best >= 0 {
		return e.taxonomy.categories[best].Label
	}
	return e.taxonomy.fallback
}

// CategorizeBatch categorizes descriptions in order, taking the lock once.
func (e *Engine) CategorizeBatch(descriptions []string) []string {
	labels := make([]string, len(descriptions))
	if e.matcher == nil {
		for i := range labels {
			labels[i] = e.taxonomy.fallback
		}
		return labels
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, d := range descriptions {
		labels[i] = e.taxonomy.fallback
		if best := e.bestLocked(strings.ToLower(d)); best >= 0 {
			labels[i] = e.taxonomy.categories[best].Label
		}
	}
	return labels
}

// PatternCount returns the number of distinct keywords loaded.
func (e *Engine) PatternCount() int {
	return len(e.owners)
}

func (e *Engine) match(text string) int {
	if e.matcher == nil {
		return -1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bestLocked(text)
}

func (e *Engine) bestLocked(text string) int {
	best := -1
	for _, idx := range e.matcher.Match([]byte(text)) {
		if idx < 0 || idx >= len(e.owners) {
			continue
		}
		if ci := e.owners[idx]; best < 0 || ci < best {
			best = ci
		}
	}
	return best
}
