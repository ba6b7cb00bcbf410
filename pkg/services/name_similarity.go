package services

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// nameSimilarity scores how alike two column names are, in [0, 1]. It takes
// the better of a normalized Levenshtein comparison over the whole names and
// a token-set Jaccard, so "author_ids" matches both "AuthorID" (tokens) and
// "authorid" (edit distance).
func nameSimilarity(a, b string) float64 {
	tokensA := nameTokens(a)
	tokensB := nameTokens(b)

	lev := levenshteinSimilarity(strings.Join(tokensA, ""), strings.Join(tokensB, ""))
	jac := tokenJaccard(tokensA, tokensB)
	if jac > lev {
		return jac
	}
	return lev
}

// nameTokens splits a column name on snake/camel boundaries, lowercases, and
// singularizes each token.
func nameTokens(name string) []string {
	var tokens []string
	var current []rune

	flush := func() {
		if len(current) == 0 {
			return
		}
		token := inflection.Singular(strings.ToLower(string(current)))
		if token != "" {
			tokens = append(tokens, token)
		}
		current = current[:0]
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			current = append(current, r)
		case unicode.IsDigit(r) && i > 0 && unicode.IsLetter(runes[i-1]):
			flush()
			current = append(current, r)
		case unicode.IsLetter(r) && i > 0 && unicode.IsDigit(runes[i-1]):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return tokens
}

func tokenJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	var intersection int
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func levenshteinSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
