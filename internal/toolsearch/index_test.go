package toolsearch

import (
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestIndex_SearchScoring(t *testing.T) {
	idx := New()
	idx.Add(models.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web for current information and return ranked results.",
		Domain:      "web",
	}, true)
	idx.Add(models.ToolDefinition{
		Name:        "read",
		Description: "Read a file from the workspace.",
		Domain:      "fs",
	}, false)

	hits := idx.Search("search", 10)
	if len(hits) == 0 {
		t.Fatal("expected at least one hit for 'search'")
	}
	if hits[0].ID != "web_search" {
		t.Fatalf("expected web_search to rank first, got %s", hits[0].ID)
	}

	if hits := idx.Search("", 10); hits != nil {
		t.Fatalf("expected nil hits for empty query, got %v", hits)
	}

	noHits := idx.Search("zzz_nonexistent", 10)
	if len(noHits) != 0 {
		t.Fatalf("expected no hits for nonsense query, got %d", len(noHits))
	}
}

func TestExtractKeywords(t *testing.T) {
	kws := extractKeywords("web_search", "Search the web for current information about a topic")
	if len(kws) == 0 {
		t.Fatal("expected keywords to be extracted")
	}
	for _, k := range kws {
		if k == "the" || k == "for" || k == "about" {
			t.Fatalf("stopword %q should have been filtered", k)
		}
	}
}
