package categorization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ResolveLabel maps user input such as "invest" or "LEISURE" to a taxonomy
// label. An exact case-insensitive match wins; otherwise the closest label
// that contains the input's characters in order is used, earlier labels
// breaking ties.
func (t *Taxonomy) ResolveLabel(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty label", ErrUnknownCategory)
	}

	labels := t.Labels()
	for _, l := range labels {
		if strings.EqualFold(l, input) {
			return l, nil
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(input, labels)
	if len(ranks) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, input)
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	return ranks[0].Target, nil
}

// Suggest lists labels that fuzzily contain input, closest first.
func (t *Taxonomy) Suggest(input string) []string {
	ranks := fuzzy.RankFindNormalizedFold(strings.TrimSpace(input), t.Labels())
	sort.Stable(ranks)

	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}
