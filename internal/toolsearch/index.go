// Package toolsearch implements the tool-search index (C5): keyword
// extraction and scored search over the registry's tool descriptions, plus
// per-session enablement persistence for lazily-exposed tools.
package toolsearch

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/nexus/pkg/models"
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "into": {}, "onto": {}, "your": {}, "their": {}, "are": {},
	"was": {}, "were": {}, "has": {}, "have": {}, "had": {}, "can": {},
	"will": {}, "would": {}, "should": {}, "could": {}, "about": {},
	"when": {}, "then": {}, "than": {}, "also": {}, "not": {}, "but": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Entry is one searchable tool record.
type Entry struct {
	models.ToolIndexEntry
}

// Index is a read-mostly in-memory search index built from a set of tool
// definitions at startup or on explicit re-registration.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]*Entry)}
}

// Add inserts or replaces an entry derived from def.
func (idx *Index) Add(def models.ToolDefinition, deferred bool) {
	entry := &Entry{ToolIndexEntry: models.ToolIndexEntry{
		ID:          def.Name,
		Description: def.Description,
		Category:    def.Domain,
		Keywords:    extractKeywords(def.Name, def.Description),
		Deferred:    deferred,
	}}
	idx.mu.Lock()
	idx.entries[def.Name] = entry
	idx.mu.Unlock()
}

// IsDeferred reports whether id is indexed and, if so, whether it is
// lazily-exposed.
func (idx *Index) IsDeferred(id string) (deferred bool, found bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[id]
	if !ok {
		return false, false
	}
	return e.Deferred, true
}

// extractKeywords splits the tool name on underscores (keeping parts
// longer than two characters) and takes up to 10 content words from the
// description, after lower-casing, stripping non-alphanumerics, and
// filtering a fixed stopword list.
func extractKeywords(name, description string) []string {
	var keywords []string
	for _, part := range strings.Split(name, "_") {
		if len(part) > 2 {
			keywords = append(keywords, strings.ToLower(part))
		}
	}

	words := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(description), " "))
	count := 0
	for _, w := range words {
		if count >= 10 {
			break
		}
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
		count++
	}
	return keywords
}

// scored is one search hit with its computed score.
type scored struct {
	entry *Entry
	score int
}

// Search returns the top limit entries matching query, scored per the
// table in the component spec: exact/contains/startswith matches on id,
// description, category, and keywords each contribute a fixed weight, plus
// a per-word bonus for every query word found in id/description/keywords.
// Zero-score entries are dropped.
func (idx *Index) Search(query string, limit int) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	words := strings.Fields(q)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var hits []scored
	for _, e := range idx.entries {
		score := scoreEntry(e, q, words)
		if score > 0 {
			hits = append(hits, scored{entry: e, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]Entry, 0, limit)
	for _, h := range hits[:limit] {
		out = append(out, *h.entry)
	}
	return out
}

func scoreEntry(e *Entry, q string, words []string) int {
	score := 0
	id := strings.ToLower(e.ID)
	desc := strings.ToLower(e.Description)
	cat := strings.ToLower(e.Category)

	switch {
	case id == q:
		score += 100
	case strings.Contains(id, q):
		score += 50
	}
	if strings.HasPrefix(id, q) {
		score += 30
	}

	if strings.Contains(desc, q) {
		score += 20
	}
	if strings.Contains(cat, q) {
		score += 25
	}

	for _, kw := range e.Keywords {
		switch {
		case kw == q:
			score += 40
		case strings.Contains(kw, q):
			score += 15
		}
	}

	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if strings.Contains(id, w) {
			score += 10
		}
		if strings.Contains(desc, w) {
			score += 5
		}
		for _, kw := range e.Keywords {
			if strings.Contains(kw, w) {
				score += 8
				break
			}
		}
	}

	return score
}
