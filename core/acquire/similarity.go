package acquire

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Terms that mark a result as a derivative version rather than the
// studio recording. A term is ignored when the request itself asks for
// that version.
var rejectTerms = []string{
	"cover",
	"remix",
	"slowed",
	"reverb",
	"bass boosted",
	"karaoke",
	"instrumental",
	"edit",
	"live",
}

// Normalize lowercases a title and strips everything but letters,
// digits and single spaces, so providers' punctuation quirks do not
// affect matching.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TokenSortRatio scores two strings 0-100 by sorting their tokens and
// comparing the joined forms with edit distance. Word order does not
// matter; "artist - title" and "title artist" score high.
func TokenSortRatio(a, b string) int {
	na := sortedTokens(a)
	nb := sortedTokens(b)
	if na == "" && nb == "" {
		return 100
	}
	if na == "" || nb == "" {
		return 0
	}

	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return (longest - dist) * 100 / longest
}

func sortedTokens(s string) string {
	tokens := strings.Fields(Normalize(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// JaccardWords scores two strings 0-100 by word-set overlap.
func JaccardWords(a, b string) int {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return intersection * 100 / union
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(Normalize(s)) {
		set[w] = true
	}
	return set
}

// Derivative reports whether a candidate title carries a reject term
// the requested title does not. A request that names "remix" accepts
// remixes.
func Derivative(candidate, requested string) bool {
	cand := " " + Normalize(candidate) + " "
	req := " " + Normalize(requested) + " "
	for _, term := range rejectTerms {
		padded := " " + term + " "
		if strings.Contains(cand, padded) && !strings.Contains(req, padded) {
			return true
		}
	}
	return false
}
