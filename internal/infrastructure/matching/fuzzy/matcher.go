package fuzzy

import (
	"sort"
	"strings"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

const DefaultThreshold = 0.3

type tier int

const (
	tierExact tier = iota
	tierNormalizedExact
	tierSubstring
	tierApproximate
)

// Matcher ranks bales by how well their id matches a query. It is stateless
// and safe for concurrent use.
type Matcher struct {
	threshold float64
}

// New builds a matcher. threshold is the maximum edit distance per query
// character; values outside (0,1] fall back to DefaultThreshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

type candidate struct {
	index int
	tier  tier
	score float64
}

// Search returns every matching bale, best first. An exact id match always
// ranks first; ties keep collection order.
func (m *Matcher) Search(query string, bales []domain.Bale) []domain.Bale {
	raw := strings.TrimSpace(query)
	q := []rune(Normalize(raw))
	if raw == "" || len(q) == 0 {
		return nil
	}

	maxDistance := int(m.threshold * float64(len(q)))
	found := make([]candidate, 0)
	for i, b := range bales {
		if b.ID == raw {
			found = append(found, candidate{index: i, tier: tierExact})
			continue
		}
		target := []rune(Normalize(b.ID))
		if len(target) == 0 {
			continue
		}
		if string(target) == string(q) {
			found = append(found, candidate{index: i, tier: tierNormalizedExact})
			continue
		}
		if strings.Contains(string(target), string(q)) {
			found = append(found, candidate{index: i, tier: tierSubstring, score: float64(len(target)-len(q)) / float64(len(target))})
			continue
		}
		d := substringDistance(q, target)
		if d <= maxDistance {
			found = append(found, candidate{index: i, tier: tierApproximate, score: float64(d) / float64(len(q))})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].tier != found[j].tier {
			return found[i].tier < found[j].tier
		}
		return found[i].score < found[j].score
	})

	out := make([]domain.Bale, 0, len(found))
	for _, c := range found {
		out = append(out, bales[c.index].Clone())
	}
	return out
}

// substringDistance is the smallest edit distance between query and any
// substring of text (Sellers' variant of Levenshtein).
func substringDistance(query, text []rune) int {
	m := len(query)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for i := range prev {
		prev[i] = i
	}

	best := prev[m]
	for _, tc := range text {
		cur[0] = 0
		for i := 1; i <= m; i++ {
			cost := 1
			if query[i-1] == tc {
				cost = 0
			}
			cur[i] = min(prev[i-1]+cost, prev[i]+1, cur[i-1]+1)
		}
		if cur[m] < best {
			best = cur[m]
		}
		prev, cur = cur, prev
	}
	return best
}
