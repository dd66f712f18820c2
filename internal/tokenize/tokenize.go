// Package tokenize turns free text plus optional tags into a bag of
// lowercased tokens with code-symbol and tag boosts, per spec §4.A.
package tokenize

import (
	"regexp"
	"strings"
)

// backtickIdentifier matches `some_identifier` style code references.
var backtickIdentifier = regexp.MustCompile("`([A-Za-z_][A-Za-z0-9_.]*)`")

// camelCase matches lowerCamelCase and CamelCase identifiers of length >= 3.
var camelCase = regexp.MustCompile(`\b[a-zA-Z][a-z0-9]+(?:[A-Z][a-z0-9]*)+\b`)

// snakeCase matches snake_case identifiers of length >= 3 (lowercase with underscore).
var snakeCase = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)

// screamingSnakeCase matches SCREAMING_SNAKE_CASE identifiers.
var screamingSnakeCase = regexp.MustCompile(`\b[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+\b`)

// dotMethod matches `.methodName` call-style references.
var dotMethod = regexp.MustCompile(`\.([a-zA-Z_][a-zA-Z0-9_]*)\b`)

// camelSplit separates camelCase/underscore boundaries for the plain-word pass.
var camelSplit = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// alnumWord matches a run of ASCII letters/digits for the plain-word pass.
var alnumWord = regexp.MustCompile(`[A-Za-z0-9]+`)

// TagMultiplicity is how many extra times tag tokens are appended so
// TF-IDF weighs them higher than body text.
const TagMultiplicity = 3

// stopWords is the ~80-word English function-word list plus coding filler,
// per spec §4.A step 4.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"if": true, "then": true, "else": true, "when": true, "at": true, "by": true,
	"for": true, "with": true, "about": true, "against": true, "between": true,
	"into": true, "through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "to": true, "from": true, "up": true, "down": true,
	"in": true, "out": true, "on": true, "off": true, "over": true, "under": true,
	"again": true, "further": true, "once": true, "here": true, "there": true,
	"all": true, "any": true, "both": true, "each": true, "few": true, "more": true,
	"most": true, "other": true, "some": true, "such": true, "no": true, "nor": true,
	"not": true, "only": true, "own": true, "same": true, "so": true, "than": true,
	"too": true, "very": true, "s": true, "t": true, "can": true, "will": true,
	"just": true, "don": true, "should": true, "now": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "having": true, "do": true, "does": true, "did": true,
	"doing": true, "would": true, "could": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "of": true, "as": true,
	"get": true, "set": true, "make": true, "use": true, "used": true, "using": true,
}

// shortAllow is the allow-list of two-letter technical terms exempt from the
// rule that drops tokens shorter than three characters.
var shortAllow = map[string]bool{
	"db": true, "ui": true, "id": true, "io": true, "os": true,
	"ip": true, "vm": true, "ai": true, "ml": true,
}

// Tokenize converts text and optional tags into a token sequence following
// the five-step procedure in spec §4.A.
func Tokenize(text string, tags []string) []string {
	var tokens []string

	for _, m := range backtickIdentifier.FindAllStringSubmatch(text, -1) {
		tokens = append(tokens, m[1], strings.ToLower(m[1]))
	}
	for _, m := range camelCase.FindAllString(text, -1) {
		tokens = append(tokens, m, strings.ToLower(m))
	}
	for _, m := range snakeCase.FindAllString(text, -1) {
		tokens = append(tokens, m, strings.ToLower(m))
	}
	for _, m := range screamingSnakeCase.FindAllString(text, -1) {
		tokens = append(tokens, m, strings.ToLower(m))
	}
	for _, m := range dotMethod.FindAllStringSubmatch(text, -1) {
		tokens = append(tokens, m[1], strings.ToLower(m[1]))
	}

	split := camelSplit.ReplaceAllString(text, "$1 $2")
	for _, w := range alnumWord.FindAllString(split, -1) {
		lw := strings.ToLower(w)
		if stopWords[lw] {
			continue
		}
		if len(lw) < 2 {
			continue
		}
		if len(lw) == 2 && !shortAllow[lw] {
			continue
		}
		tokens = append(tokens, lw)
	}

	for _, tag := range tags {
		lt := strings.ToLower(strings.TrimSpace(tag))
		if lt == "" {
			continue
		}
		for i := 0; i < TagMultiplicity; i++ {
			tokens = append(tokens, lt)
		}
	}

	return tokens
}

// Keywords joins a token sequence back into a precomputed keywords string
// (the Memory.Keywords field), deduplicating while preserving order.
func Keywords(tokens []string) string {
	seen := make(map[string]bool, len(tokens))
	var uniq []string
	for _, t := range tokens {
		lt := strings.ToLower(t)
		if seen[lt] {
			continue
		}
		seen[lt] = true
		uniq = append(uniq, lt)
	}
	return strings.Join(uniq, " ")
}
