package memory

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"memoryengine/internal/logging"
	"memoryengine/internal/store"
	"memoryengine/internal/tfidf"
	"memoryengine/internal/tokenize"
	"memoryengine/internal/vectorindex"
)

// Remember creates a memory, per spec §4.G.2's eight-step procedure.
func (m *Manager) Remember(ctx context.Context, in RememberInput) (*RememberResult, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "Remember")
	defer timer.Stop()

	if !store.ValidCategory(in.Category) {
		return nil, fmt.Errorf("memory: invalid category %q", in.Category)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("memory: content is required")
	}
	if in.ProjectPath == "" {
		in.ProjectPath = m.projectPath
	}

	keywordTokens := tokenize.Tokenize(in.Content, nil)
	keywordTokens = append(keywordTokens, tokenize.Tokenize(in.Rationale, nil)...)
	keywordTokens = append(keywordTokens, tokenize.Tokenize("", in.Tags)...)
	keywords := tokenize.Keywords(keywordTokens)

	isPermanent := store.IsPermanentCategory(in.Category)
	if in.IsPermanent != nil {
		isPermanent = *in.IsPermanent
	}

	var conflicts []Conflict
	if in.Category != store.CategoryWarning {
		var err error
		conflicts, err = m.detectConflicts(in.Content, in.Rationale)
		if err != nil {
			logging.MemoryWarn("conflict detection failed, continuing without it: %v", err)
		}
	}

	mem := &store.Memory{
		ProjectPath: in.ProjectPath,
		Category:    in.Category,
		Content:     in.Content,
		Rationale:   in.Rationale,
		Context:     in.Context,
		Tags:        in.Tags,
		FilePath:    in.FilePath,
		Keywords:    keywords,
		IsPermanent: isPermanent,
	}

	if m.embed != nil {
		text := in.Content + " " + in.Rationale
		embedCtx, cancel := newEmbedContext(ctx)
		vec, err := m.embed.Embed(embedCtx, text)
		cancel()
		if err != nil {
			logging.EmbeddingWarn("embed on remember failed, storing without a vector: %v", err)
		} else {
			mem.VectorEmbedding = vec
		}
	}

	id, err := m.store.CreateMemory(mem)
	if err != nil {
		return nil, fmt.Errorf("memory: create: %w", err)
	}

	m.invalidateLocal(id, mem.Content+" "+mem.Rationale, mem.Tags)

	if m.vec != nil && len(mem.VectorEmbedding) > 0 {
		meta := vectorindex.Metadata{
			Category:    string(mem.Category),
			Tags:        mem.Tags,
			FilePath:    mem.FilePath,
			Worked:      int(mem.Worked),
			IsPermanent: mem.IsPermanent,
		}
		if err := m.vec.Upsert(id, mem.VectorEmbedding, meta); err != nil {
			logging.MemoryWarn("vector upsert failed for memory %d: %v", id, err)
		}
	}

	scope := m.classifyScope(in)
	if scope == ScopeGlobal && m.projectPath != GlobalProjectPath && m.global != nil {
		globalIn := in
		globalIn.ProjectPath = GlobalProjectPath
		if _, err := m.global.Remember(ctx, globalIn); err != nil {
			logging.MemoryWarn("global store copy failed for memory %d: %v", id, err)
		}
	}

	logging.Memory("stored %s memory %d: %.50s", mem.Category, id, mem.Content)
	return &RememberResult{Memory: mem, Scope: scope, Conflicts: conflicts}, nil
}

// detectConflicts builds an ephemeral TF-IDF index of existing non-archived
// memories and scores the new content against each, per spec §4.G.5.
func (m *Manager) detectConflicts(content, rationale string) ([]Conflict, error) {
	existing, err := m.store.ListNonArchived(m.projectPath)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}

	ephemeral := tfidf.New()
	for _, mem := range existing {
		ephemeral.AddDocument(mem.ID, mem.Content+" "+mem.Rationale, mem.Tags)
	}
	const probeID = -1
	ephemeral.AddDocument(probeID, content+" "+rationale, nil)
	defer ephemeral.RemoveDocument(probeID)

	var conflicts []Conflict
	for _, mem := range existing {
		sim := ephemeral.DocumentSimilarity(probeID, mem.ID)
		if sim < conflictThreshold {
			continue
		}
		kind := ConflictPotentialDuplicate
		switch {
		case mem.Worked == store.WorkedFalse:
			kind = ConflictSimilarFailed
		case mem.Category == store.CategoryWarning:
			kind = ConflictExistingWarning
		case sim > duplicateThreshold:
			kind = ConflictPotentialDuplicate
		default:
			continue
		}
		conflicts = append(conflicts, Conflict{
			MemoryID:   mem.ID,
			Kind:       kind,
			Similarity: sim,
			Content:    mem.Content,
		})
	}
	return conflicts, nil
}

var (
	anchorPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bin this (repo|project|codebase)\b`),
		regexp.MustCompile(`(?i)\bour team\b`),
		regexp.MustCompile(`(?i)\bthis (application|service)\b`),
		regexp.MustCompile(`(?i)\bPR\s*#\d+`),
		regexp.MustCompile(`(?i)\bticket\s*#\d+`),
	}
	universalPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\balways\b`),
		regexp.MustCompile(`(?i)\bnever\b`),
		regexp.MustCompile(`(?i)\bprefer\b`),
		regexp.MustCompile(`(?i)\bavoid\b`),
		regexp.MustCompile(`(?i)\bin (go|python|javascript|typescript|rust|java|c\+\+)\b`),
	}
	globalTagSet = map[string]bool{
		"security": true, "best-practice": true, "anti-pattern": true,
		"architecture": true, "design-pattern": true,
	}
)

// classifyScope applies the local/global heuristic of spec §4.G.6.
func (m *Manager) classifyScope(in RememberInput) Scope {
	if m.projectPath == GlobalProjectPath || in.ProjectPath == GlobalProjectPath {
		return ScopeLocal
	}
	if in.FilePath != "" {
		return ScopeLocal
	}

	text := in.Content + " " + in.Rationale
	local := matchesAny(anchorPhrases, text)
	global := matchesAny(universalPhrases, text)
	for _, tag := range in.Tags {
		if globalTagSet[strings.ToLower(tag)] {
			global = true
		}
	}

	switch {
	case local:
		return ScopeLocal
	case global:
		return ScopeGlobal
	default:
		return ScopeLocal
	}
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
