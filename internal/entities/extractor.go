// Package entities implements spec §4.L: a regex entity extractor run
// over every memory's content+rationale on create, and a context-trigger
// matcher used for auto-recall.
package entities

import (
	"regexp"
	"strings"

	"memoryengine/internal/store"
)

// Extracted is one (type, name, context snippet) tuple found in text.
type Extracted struct {
	Type    store.EntityType
	Name    string
	Context string
}

var patterns = []struct {
	typ   store.EntityType
	re    *regexp.Regexp
	group int // 0 means use the whole match
}{
	{store.EntityFunction, regexp.MustCompile(`\b([a-z_][a-zA-Z0-9_]*)\s*\(`), 1},
	{store.EntityClass, regexp.MustCompile(`\b([A-Z][a-z]+(?:[A-Z][a-z]+)+|[A-Z]{2,}[a-z]+)\b`), 1},
	{store.EntityFile, regexp.MustCompile(`(?:[\w./\\-]+/)?[\w.-]+\.[a-zA-Z]{1,4}\b`), 0},
	{store.EntityModule, regexp.MustCompile(`(?:from\s+|import\s+)([\w.]+)`), 1},
	{store.EntityVariable, regexp.MustCompile("[`'\"]([a-z_][a-zA-Z0-9_]*)[`'\"]"), 1},
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "use": true,
	"get": true, "set": true, "add": true, "new": true, "this": true,
	"that": true, "from": true, "have": true, "been": true, "will": true,
	"can": true, "should": true, "def": true, "class": true, "return": true,
	"import": true, "if": true, "else": true, "elif": true, "true": true,
	"false": true, "none": true, "null": true, "self": true, "cls": true,
}

const contextRadius = 25

// Extract applies every pattern to text and returns deduplicated
// (type, name) entities with a short surrounding snippet.
func Extract(text string) []Extracted {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []Extracted

	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			name := text[start:end]
			if p.group > 0 {
				gs, ge := m[2*p.group], m[2*p.group+1]
				if gs < 0 {
					continue
				}
				name = text[gs:ge]
			}
			name = strings.TrimSpace(name)
			if len(name) < 2 || stopWords[strings.ToLower(name)] {
				continue
			}
			key := string(p.typ) + ":" + strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true

			ctxStart := start - contextRadius
			if ctxStart < 0 {
				ctxStart = 0
			}
			ctxEnd := end + contextRadius
			if ctxEnd > len(text) {
				ctxEnd = len(text)
			}
			out = append(out, Extracted{
				Type:    p.typ,
				Name:    name,
				Context: "..." + text[ctxStart:ctxEnd] + "...",
			})
		}
	}
	return out
}

// IndexMemory extracts entities from a memory's content+rationale, upserts
// them, and links each to the memory (relationship "mentions"), per spec
// §4.L's "on every create" requirement.
func IndexMemory(st *store.Store, memoryID int64, projectPath, content, rationale string) error {
	combined := content
	if rationale != "" {
		combined += "\n" + rationale
	}
	for _, e := range Extract(combined) {
		entityID, err := st.UpsertEntity(projectPath, e.Type, e.Name, "")
		if err != nil {
			return err
		}
		if err := st.LinkMemoryEntity(memoryID, entityID, store.RefMentions, e.Context); err != nil {
			return err
		}
	}
	return nil
}
