package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"memoryengine/internal/tfidf"
	"memoryengine/internal/vectorindex"
)

func TestSearchFallsBackToTFIDFOnlyWithoutVectorIndex(t *testing.T) {
	tf := tfidf.New()
	tf.AddDocument(1, "refresh tokens expire after thirty minutes", nil)
	tf.AddDocument(2, "database migrations run on boot", nil)

	s := New(tf, nil, DefaultVectorWeight)
	results, err := s.Search(context.Background(), "refresh token expiry", nil, 5, vectorindex.Filters{})
	assert.NoError(t, err)
	if assert.NotEmpty(t, results) {
		assert.Equal(t, int64(1), results[0].ID)
		assert.Zero(t, results[0].VectorScore)
	}
}

func TestSearchTopKTruncates(t *testing.T) {
	tf := tfidf.New()
	for i := int64(1); i <= 10; i++ {
		tf.AddDocument(i, "shared token appears in every document here", nil)
	}
	s := New(tf, nil, DefaultVectorWeight)
	results, err := s.Search(context.Background(), "shared token", nil, 3, vectorindex.Filters{})
	assert.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
}

func TestNewClampsOutOfRangeWeight(t *testing.T) {
	s := New(tfidf.New(), nil, 5)
	assert.Equal(t, DefaultVectorWeight, s.weight)
}
