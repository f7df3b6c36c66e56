package dedupe

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Scorer returns the similarity of two keys in [0,100]. Implementations must
// be pure and symmetric.
type Scorer func(a, b string) float64

var scorers = map[string]Scorer{
	"token_set":    TokenSetRatio,
	"ratio":        Ratio,
	"levenshtein":  LevenshteinRatio,
	"jaro_winkler": JaroWinkler,
}

// ScorerNames lists the registered scorer names in sorted order.
func ScorerNames() []string {
	out := make([]string, 0, len(scorers))
	for k := range scorers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ScorerByName resolves a named scorer. The empty name selects token_set.
func ScorerByName(name string) (Scorer, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return TokenSetRatio, nil
	}
	s, ok := scorers[n]
	if !ok {
		return nil, invalidParam("scorer", "unknown scorer %q (available: %s)", name, strings.Join(ScorerNames(), ", "))
	}
	return s, nil
}

// indel is the insertion/deletion edit distance over runes (substitution
// counts as two), i.e. len(a)+len(b)-2·LCS(a,b).
func indel(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for _, ra := range a {
		for j, rb := range b {
			switch {
			case ra == rb:
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	return len(a) + len(b) - 2*prev[len(b)]
}

// normDistance turns a distance over a combined length into a 0..100 similarity.
func normDistance(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 - 100*float64(dist)/float64(lensum)
}

// Ratio is the normalized Indel similarity of the two strings.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	return normDistance(indel(ra, rb), len(ra)+len(rb))
}

// TokenSetRatio compares the shared whitespace tokens of a and b against
// their sorted differences, so word order and repeated words do not matter
// and one key being a token subset of the other scores 100.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var sect, diffAB, diffBA []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			sect = append(sect, t)
		} else {
			diffAB = append(diffAB, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			diffBA = append(diffBA, t)
		}
	}
	if len(sect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}
	sort.Strings(sect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)
	ab := []rune(strings.Join(diffAB, " "))
	ba := []rune(strings.Join(diffBA, " "))
	sectLen := utf8.RuneCountInString(strings.Join(sect, " "))
	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + len(ab)
	sectBALen := sectLen + sep + len(ba)

	result := normDistance(indel(ab, ba), sectABLen+sectBALen)
	if sectLen == 0 {
		return result
	}
	// The intersection string vs. intersection plus each difference.
	sectAB := normDistance(sep+len(ab), sectLen+sectABLen)
	sectBA := normDistance(sep+len(ba), sectLen+sectBALen)
	return math.Max(result, math.Max(sectAB, sectBA))
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(s) {
		out[f] = struct{}{}
	}
	return out
}

// LevenshteinRatio is 100·(1 − distance/max rune length).
func LevenshteinRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	m := la
	if lb > m {
		m = lb
	}
	if m == 0 {
		return 100
	}
	return 100 * (1 - float64(levenshtein.ComputeDistance(a, b))/float64(m))
}

// JaroWinkler is the Jaro-Winkler similarity scaled to 0..100.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return 100 * smetrics.JaroWinkler(a, b, 0.7, 4)
}
