// Package search implements the hybrid searcher, Component D: a linear
// combination of the TF-IDF sparse score and the dense vector cosine score.
package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"memoryengine/internal/tfidf"
	"memoryengine/internal/vectorindex"
)

// DefaultVectorWeight is w in spec §4.D.
const DefaultVectorWeight = 0.3

const (
	tfidfThreshold  = 0.1
	vectorThreshold = 0.3
)

// Result is one combined, re-sorted candidate.
type Result struct {
	ID          int64
	Score       float64
	TFIDFScore  float64
	VectorScore float64
}

// Searcher combines a TF-IDF index with an optional dense vector index.
type Searcher struct {
	tf     *tfidf.Index
	vec    *vectorindex.Index // nil disables the vector half
	weight float64
}

// New builds a Searcher. vec may be nil (vector index unavailable or
// empty); weight defaults to DefaultVectorWeight when out of [0,1].
func New(tf *tfidf.Index, vec *vectorindex.Index, weight float64) *Searcher {
	if weight < 0 || weight > 1 {
		weight = DefaultVectorWeight
	}
	return &Searcher{tf: tf, vec: vec, weight: weight}
}

// Weight returns the configured vector weight, for callers (the memory
// manager's index rebuild) that need to reconstruct a Searcher around a
// freshly rebuilt TF-IDF index without losing the configured blend.
func (s *Searcher) Weight() float64 { return s.weight }

// Search tokenizes/searches queryText against TF-IDF and, if queryVec is
// non-empty and a vector index is attached with entries, against the dense
// index too, then recombines and resorts the union. When the vector index
// is empty or disabled, results are TF-IDF only (no w applied), per spec
// §4.D.
func (s *Searcher) Search(ctx context.Context, queryText string, queryVec []float32, topK int, filters vectorindex.Filters) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}
	pool := topK * 2

	vecActive := s.vec != nil && len(queryVec) > 0
	if vecActive {
		if n, err := s.vec.Count(); err != nil || n == 0 {
			vecActive = false
		}
	}

	var tfResults []tfidf.Result
	var vecResults []vectorindex.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tfResults = s.tf.Search(queryText, pool, tfidfThreshold)
		return nil
	})
	if vecActive {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			var err error
			vecResults, err = s.vec.Search(queryVec, pool, filters)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !vecActive {
		out := make([]Result, 0, len(tfResults))
		for _, r := range tfResults {
			out = append(out, Result{ID: r.ID, Score: r.Score, TFIDFScore: r.Score})
		}
		return truncate(out, topK), nil
	}

	byID := make(map[int64]*Result)
	for _, r := range tfResults {
		byID[r.ID] = &Result{ID: r.ID, TFIDFScore: r.Score}
	}
	for _, r := range vecResults {
		if r.Score < vectorThreshold {
			continue
		}
		if existing, ok := byID[r.ID]; ok {
			existing.VectorScore = r.Score
		} else {
			byID[r.ID] = &Result{ID: r.ID, VectorScore: r.Score}
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		r.Score = (1-s.weight)*r.TFIDFScore + s.weight*r.VectorScore
		out = append(out, *r)
	}
	sortByScoreDesc(out)
	return truncate(out, topK), nil
}

func sortByScoreDesc(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func truncate(results []Result, topK int) []Result {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}
