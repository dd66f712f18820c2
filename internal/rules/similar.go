package rules

import "fmt"

// FindSimilar returns up to five existing rules whose trigger text is
// closest to candidateTrigger, for duplicate avoidance before Add.
func (e *Engine) FindSimilar(candidateTrigger string) ([]SimilarRule, error) {
	if err := e.ensureFresh(); err != nil {
		return nil, fmt.Errorf("rules: refresh index: %w", err)
	}

	e.mu.Lock()
	hits := e.tf.Search(candidateTrigger, similarTopK, 0)
	e.mu.Unlock()

	out := make([]SimilarRule, 0, len(hits))
	for _, h := range hits {
		r, err := e.store.GetRule(h.ID)
		if err != nil || r == nil {
			continue
		}
		out = append(out, SimilarRule{Rule: r, Score: h.Score})
	}
	return out, nil
}
