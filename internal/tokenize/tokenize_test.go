package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("The user should get a JSON Web Token", nil)
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "a")
	assert.Contains(t, tokens, "json")
	assert.Contains(t, tokens, "web")
	assert.Contains(t, tokens, "token")
}

func TestTokenizeKeepsTwoLetterAllowList(t *testing.T) {
	tokens := Tokenize("store in db via io", nil)
	assert.Contains(t, tokens, "db")
	assert.Contains(t, tokens, "io")
}

func TestTokenizeExtractsCamelCaseSymbols(t *testing.T) {
	tokens := Tokenize("call getUserProfile to load data", nil)
	assert.Contains(t, tokens, "getUserProfile")
	assert.Contains(t, tokens, "getuserprofile")
}

func TestTokenizeTagsGetTripleMultiplicity(t *testing.T) {
	tokens := Tokenize("irrelevant content here", []string{"security"})
	count := 0
	for _, tok := range tokens {
		if tok == "security" {
			count++
		}
	}
	assert.Equal(t, TagMultiplicity, count)
}

func TestKeywordsDeduplicatesPreservingOrder(t *testing.T) {
	k := Keywords([]string{"Foo", "foo", "bar"})
	assert.Equal(t, "foo bar", k)
}
