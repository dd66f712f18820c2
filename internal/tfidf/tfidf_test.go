package tfidf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	idx := New()
	idx.AddDocument(1, "use json web tokens for auth", nil)
	assert.Empty(t, idx.Search("", 10, DefaultThreshold))
}

func TestSearchFindsRelevantDocument(t *testing.T) {
	idx := New()
	idx.AddDocument(1, "use JSON Web Tokens for authentication", nil)
	idx.AddDocument(2, "prefer Postgres over SQLite for production databases", nil)

	results := idx.Search("JSON Web Token auth", 10, DefaultThreshold)
	if assert.NotEmpty(t, results) {
		assert.Equal(t, int64(1), results[0].ID)
	}
}

func TestRemoveDocumentDropsFromResults(t *testing.T) {
	idx := New()
	idx.AddDocument(1, "use JSON Web Tokens for authentication", nil)
	idx.RemoveDocument(1)
	assert.Empty(t, idx.Search("JSON Web Token", 10, DefaultThreshold))
}

func TestDocumentSimilarityOfIdenticalTextIsHigh(t *testing.T) {
	idx := New()
	idx.AddDocument(1, "always validate user input to prevent injection", nil)
	idx.AddDocument(2, "always validate user input to prevent injection", nil)
	assert.Greater(t, idx.DocumentSimilarity(1, 2), 0.9)
}

func TestUnknownTermsContributeZero(t *testing.T) {
	idx := New()
	idx.AddDocument(1, "use JSON Web Tokens", nil)
	results := idx.Search("completely unrelated zzqx term", 10, 0.0)
	assert.Empty(t, results)
}
