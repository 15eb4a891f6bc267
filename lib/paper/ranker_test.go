package paper

import (
	"context"
	"testing"
)

type fakeSearcher struct {
	candidates []CandidatePaper
	err        error
}

func (f *fakeSearcher) SearchPapers(ctx context.Context, query string, limit int) ([]CandidatePaper, error) {
	return f.candidates, f.err
}

type fakeEmbedder struct {
	queryEmbedding Embedding
	byText         map[string]Embedding
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string, normalize bool) (Embedding, error) {
	if emb, ok := f.byText[text]; ok {
		return emb, nil
	}
	return f.queryEmbedding, nil
}

func (f *fakeEmbedder) EmbedBatchIndexed(ctx context.Context, items []IndexedText, maxWorkers int, normalize bool) map[int]Embedding {
	out := make(map[int]Embedding, len(items))
	for _, item := range items {
		if emb, ok := f.byText[item.Text]; ok {
			out[item.Index] = emb
		}
	}
	return out
}

type fakeCache struct {
	stored map[string]Embedding
}

func newFakeCache() *fakeCache { return &fakeCache{stored: make(map[string]Embedding)} }

func (f *fakeCache) Get(ctx context.Context, paperID, contentHash string) (Embedding, bool, error) {
	emb, ok := f.stored[paperID+"#"+contentHash]
	return emb, ok, nil
}

func (f *fakeCache) Put(ctx context.Context, paperID, contentHash string, embedding Embedding, ttlDays int) error {
	f.stored[paperID+"#"+contentHash] = embedding
	return nil
}

func testParams(k int) RankParams {
	return RankParams{
		CandidateLimit:      100,
		PaperEmbeddingTTL:   30,
		EmbeddingMaxWorkers: 6,
		K:                   k,
	}
}

func TestRankColdCacheOrdersByScoreDescending(t *testing.T) {
	candidates := []CandidatePaper{
		{PaperID: "a", Title: "A", Abstract: "far"},
		{PaperID: "b", Title: "B", Abstract: "near"},
	}
	searcher := &fakeSearcher{candidates: candidates}
	embedder := &fakeEmbedder{
		queryEmbedding: Embedding{1, 0},
		byText: map[string]Embedding{
			"A\n\nfar":  {0, 1},
			"B\n\nnear": {1, 0},
		},
	}
	cache := newFakeCache()

	result, err := Rank(context.Background(), searcher, embedder, cache, "context text", testParams(10))
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}
	if result.Results[0].PaperID != "b" {
		t.Fatalf("expected paper b to rank first, got %s", result.Results[0].PaperID)
	}
	if result.Meta.CandidatesFetched != 2 {
		t.Fatalf("expected candidatesFetched 2, got %d", result.Meta.CandidatesFetched)
	}
	if result.Meta.CachedEmbeddingsUsed != 0 {
		t.Fatalf("expected 0 cached embeddings on a cold cache, got %d", result.Meta.CachedEmbeddingsUsed)
	}
}

func TestRankUsesWarmCache(t *testing.T) {
	cand := CandidatePaper{PaperID: "a", Title: "A", Abstract: "text"}
	hash := ContentHash("A", "text")

	cache := newFakeCache()
	cache.stored["a#"+hash] = Embedding{1, 0}

	searcher := &fakeSearcher{candidates: []CandidatePaper{cand}}
	embedder := &fakeEmbedder{queryEmbedding: Embedding{1, 0}}

	result, err := Rank(context.Background(), searcher, embedder, cache, "context", testParams(10))
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if result.Meta.CachedEmbeddingsUsed != 1 {
		t.Fatalf("expected 1 cached embedding used, got %d", result.Meta.CachedEmbeddingsUsed)
	}
	if len(result.Results) != 1 || result.Results[0].Score != 1 {
		t.Fatalf("unexpected result: %+v", result.Results)
	}
}

func TestRankRespectsK(t *testing.T) {
	candidates := make([]CandidatePaper, 5)
	byText := make(map[string]Embedding, 5)
	for i := range candidates {
		id := string(rune('a' + i))
		candidates[i] = CandidatePaper{PaperID: id, Title: id, Abstract: "x"}
		byText[id+"\n\nx"] = Embedding{1, 0}
	}

	searcher := &fakeSearcher{candidates: candidates}
	embedder := &fakeEmbedder{queryEmbedding: Embedding{1, 0}, byText: byText}
	cache := newFakeCache()

	result, err := Rank(context.Background(), searcher, embedder, cache, "context", testParams(2))
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected top-2 results, got %d", len(result.Results))
	}
}

func TestRankPropagatesSearchError(t *testing.T) {
	searcher := &fakeSearcher{err: ErrCircuitOpen}
	embedder := &fakeEmbedder{queryEmbedding: Embedding{1, 0}}
	cache := newFakeCache()

	_, err := Rank(context.Background(), searcher, embedder, cache, "context", testParams(10))
	if err != ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen to propagate, got %v", err)
	}
}

func TestAbstractSnippetTruncatesAt320Chars(t *testing.T) {
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	got := abstractSnippet(string(long))
	if len(got) != 323 {
		t.Fatalf("expected 320 chars + ellipsis (323), got %d", len(got))
	}
}

func TestAbstractSnippetFallsBackWhenEmpty(t *testing.T) {
	if got := abstractSnippet(""); got != "Abstract not available." {
		t.Fatalf("got %q", got)
	}
}

func TestRankSkipsCandidatesWithNoEmbeddableText(t *testing.T) {
	candidates := []CandidatePaper{
		{PaperID: "empty", Title: "", Abstract: ""},
		{PaperID: "ok", Title: "Title", Abstract: "Abstract"},
	}
	searcher := &fakeSearcher{candidates: candidates}
	embedder := &fakeEmbedder{
		queryEmbedding: Embedding{1, 0},
		byText:         map[string]Embedding{"Title\n\nAbstract": {1, 0}},
	}
	cache := newFakeCache()

	result, err := Rank(context.Background(), searcher, embedder, cache, "context", testParams(10))
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].PaperID != "ok" {
		t.Fatalf("expected only the embeddable candidate to be ranked, got %+v", result.Results)
	}
}
