package rules

import (
	"fmt"
	"sort"
	"strings"

	"memoryengine/internal/cache"
	"memoryengine/internal/logging"
	"memoryengine/internal/store"
)

// Check finds the rules whose trigger matches actionText closely enough to
// apply, aggregates their guidance, and derives a human-facing message, per
// spec §4.I. Results are cached on (action_text, threshold).
func (e *Engine) Check(actionText string, threshold float64) (*CheckResult, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "rules.Check")
	defer timer.Stop()

	if threshold <= 0 {
		threshold = checkThreshold
	}
	key := cache.NormalizeKey(actionText, threshold)
	if found, v := e.cache.Get(key); found {
		return v.(*CheckResult), nil
	}

	if err := e.ensureFresh(); err != nil {
		return nil, fmt.Errorf("rules: refresh index: %w", err)
	}

	e.mu.Lock()
	hits := e.tf.Search(actionText, checkTopK, threshold)
	e.mu.Unlock()

	var matched []*store.Rule
	for _, h := range hits {
		r, err := e.store.GetRule(h.ID)
		if err != nil || r == nil || !r.Enabled {
			continue
		}
		matched = append(matched, r)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return false
	})

	result := &CheckResult{MatchedRules: matched}
	seen := map[string]bool{}
	collect := func(dst *[]string, items []string) {
		for _, item := range items {
			if seen[item] {
				continue
			}
			seen[item] = true
			*dst = append(*dst, item)
		}
	}
	for _, r := range matched {
		collect(&result.MustDo, r.MustDo)
	}
	seenMustNot := map[string]bool{}
	for _, r := range matched {
		for _, w := range r.MustNot {
			if !seenMustNot[w] {
				seenMustNot[w] = true
				result.MustNot = append(result.MustNot, w)
			}
		}
	}
	seenAsk := map[string]bool{}
	for _, r := range matched {
		for _, w := range r.AskFirst {
			if !seenAsk[w] {
				seenAsk[w] = true
				result.AskFirst = append(result.AskFirst, w)
			}
		}
	}
	seenWarn := map[string]bool{}
	for _, r := range matched {
		for _, w := range r.Warnings {
			if !seenWarn[w] {
				seenWarn[w] = true
				result.Warnings = append(result.Warnings, w)
			}
		}
	}

	result.HasBlockers = len(result.MustNot) > 0 || len(result.Warnings) > 0
	result.Message = deriveMessage(result)

	e.cache.Set(key, result)
	return result, nil
}

func deriveMessage(r *CheckResult) string {
	switch {
	case r.HasBlockers:
		return "STOP: Review warnings before proceeding - " + strings.Join(append(append([]string{}, r.MustNot...), r.Warnings...), "; ")
	case len(r.AskFirst) > 0:
		return "Consider these questions: " + strings.Join(r.AskFirst, "; ")
	case len(r.MustDo) > 0:
		return "Rules matched - follow the must_do checklist"
	default:
		return "Rules matched but no specific guidance"
	}
}
