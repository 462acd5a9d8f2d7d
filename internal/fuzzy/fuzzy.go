// Package fuzzy provides similarity scoring for partner names and
// directory lookups on a 0-100 scale.
//
// PartialRatio is substring-oriented and suits legal-entity names that
// embed the target ("ООО Ромашка" vs "Ромашка"). TokenSetRatio is
// word-set oriented and tolerates reordered or extra words, which
// suits address-like location names.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Scorer computes a similarity score between a query and a candidate.
type Scorer func(query, candidate string) int

// Match is one scored candidate.
type Match struct {
	Value string
	Score int
}

// DefaultProcess canonicalizes a string before scoring: lowercase,
// non-alphanumeric runes become spaces, whitespace collapsed.
func DefaultProcess(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Ratio scores full-string similarity from edit distance.
func Ratio(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}

	dist := levenshtein.ComputeDistance(a, b)
	return (longest - dist) * 100 / longest
}

// PartialRatio scores the best alignment of the shorter string against
// every same-length window of the longer one.
func PartialRatio(a, b string) int {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		if len(longer) == 0 {
			return 100
		}
		return 0
	}

	best := 0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		window := string(longer[start : start+len(shorter)])
		if score := Ratio(string(shorter), window); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSetRatio scores word-set similarity: shared tokens count fully
// regardless of order, extra words on either side are penalized only
// against their own combination.
func TokenSetRatio(a, b string) int {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		if len(tokensA) == len(tokensB) {
			return 100
		}
		return 0
	}

	var shared, onlyA, onlyB []string
	for t := range tokensA {
		if _, ok := tokensB[t]; ok {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tokensB {
		if _, ok := tokensA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(base, combinedA)
	if s := Ratio(base, combinedB); s > best {
		best = s
	}
	if s := Ratio(combinedA, combinedB); s > best {
		best = s
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(DefaultProcess(s)) {
		set[t] = struct{}{}
	}
	return set
}

// ExtractOne returns the best-scoring candidate at or above cutoff.
// Query and candidates go through DefaultProcess before scoring.
func ExtractOne(query string, candidates []string, scorer Scorer, cutoff int) (Match, bool) {
	processed := DefaultProcess(query)

	best := Match{Score: -1}
	for _, c := range candidates {
		score := scorer(processed, DefaultProcess(c))
		if score > best.Score {
			best = Match{Value: c, Score: score}
		}
	}

	if best.Score < cutoff {
		return Match{}, false
	}
	return best, true
}

// Extract returns all candidates scoring at or above cutoff, highest
// first. Candidate order breaks score ties.
func Extract(query string, candidates []string, scorer Scorer, cutoff int) []Match {
	processed := DefaultProcess(query)

	var matches []Match
	for _, c := range candidates {
		score := scorer(processed, DefaultProcess(c))
		if score >= cutoff {
			matches = append(matches, Match{Value: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
