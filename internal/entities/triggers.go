package entities

import (
	"fmt"
	"path/filepath"
	"regexp"

	"memoryengine/internal/store"
)

// MatchContext is the current context a caller wants matched against a
// project's active triggers: the file(s) touched, tags in play, and
// entity names mentioned.
type MatchContext struct {
	FilePaths []string
	Tags      []string
	Entities  []string
}

// Match is a fired trigger: its recall_topic and optional category filter.
type Match struct {
	Trigger    *store.ContextTrigger
	RecallTopic string
	Categories  []string
}

// MatchTriggers evaluates every active trigger for projectPath against ctx
// and returns the ones that fire, highest priority first (ListActiveTriggers
// already orders by priority desc). Each firing trigger's count and
// last_triggered are recorded.
func MatchTriggers(st *store.Store, projectPath string, ctx MatchContext) ([]Match, error) {
	triggers, err := st.ListActiveTriggers(projectPath)
	if err != nil {
		return nil, fmt.Errorf("entities: list triggers: %w", err)
	}

	var matches []Match
	for _, t := range triggers {
		fired, err := evaluates(t, ctx)
		if err != nil {
			continue
		}
		if !fired {
			continue
		}
		if err := st.RecordTriggerFired(t.ID); err != nil {
			return matches, fmt.Errorf("entities: record trigger fired: %w", err)
		}
		matches = append(matches, Match{Trigger: t, RecallTopic: t.RecallTopic, Categories: t.RecallCategories})
	}
	return matches, nil
}

func evaluates(t *store.ContextTrigger, ctx MatchContext) (bool, error) {
	switch t.TriggerType {
	case store.TriggerFilePattern:
		for _, f := range ctx.FilePaths {
			if ok, err := filepath.Match(t.Pattern, f); err == nil && ok {
				return true, nil
			}
			if matchDoubleStar(t.Pattern, f) {
				return true, nil
			}
		}
		return false, nil
	case store.TriggerTagMatch:
		re, err := regexp.Compile(t.Pattern)
		if err != nil {
			return false, err
		}
		for _, tag := range ctx.Tags {
			if re.MatchString(tag) {
				return true, nil
			}
		}
		return false, nil
	case store.TriggerEntityMatch:
		re, err := regexp.Compile(t.Pattern)
		if err != nil {
			return false, err
		}
		for _, e := range ctx.Entities {
			if re.MatchString(e) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("entities: unknown trigger type %q", t.TriggerType)
	}
}

// matchDoubleStar extends filepath.Match (which treats "*" as not
// crossing "/") with "**" support for patterns like "internal/**/*.go",
// since glob triggers over repo-relative paths routinely need to match
// across directory levels.
func matchDoubleStar(pattern, name string) bool {
	if !regexpDoubleStar.MatchString(pattern) {
		return false
	}
	re, err := doubleStarToRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

var regexpDoubleStar = regexp.MustCompile(`\*\*`)

func doubleStarToRegexp(pattern string) (*regexp.Regexp, error) {
	var out []byte
	out = append(out, '^')
	i := 0
	for i < len(pattern) {
		switch {
		case i+1 < len(pattern) && pattern[i] == '*' && pattern[i+1] == '*':
			out = append(out, ".*"...)
			i += 2
		case pattern[i] == '*':
			out = append(out, "[^/]*"...)
			i++
		case pattern[i] == '?':
			out = append(out, "[^/]"...)
			i++
		case isRegexMeta(pattern[i]):
			out = append(out, '\\', pattern[i])
			i++
		default:
			out = append(out, pattern[i])
			i++
		}
	}
	out = append(out, '$')
	return regexp.Compile(string(out))
}

func isRegexMeta(b byte) bool {
	switch b {
	case '.', '+', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
		return true
	}
	return false
}
