package paper

import (
	"context"
	"math"
	"sort"
)

// Searcher is what the ranker needs from an upstream search client.
// Abstracted so ranker tests can inject a fake without a breaker or
// HTTP client attached.
type Searcher interface {
	SearchPapers(ctx context.Context, query string, limit int) ([]CandidatePaper, error)
}

// Embedder is what the ranker needs from an embedding client.
type Embedder interface {
	EmbedOne(ctx context.Context, text string, normalize bool) (Embedding, error)
	EmbedBatchIndexed(ctx context.Context, items []IndexedText, maxWorkers int, normalize bool) map[int]Embedding
}

// Cache is what the ranker needs from the embedding cache.
type Cache interface {
	Get(ctx context.Context, paperID, contentHash string) (Embedding, bool, error)
	Put(ctx context.Context, paperID, contentHash string, embedding Embedding, ttlDays int) error
}

const abstractSnippetMaxChars = 320

// abstractSnippet truncates an abstract to at most 320 characters with
// an ellipsis, or returns the fixed placeholder when there is no
// abstract at all.
func abstractSnippet(abstract string) string {
	if abstract == "" {
		return "Abstract not available."
	}
	runes := []rune(abstract)
	if len(runes) <= abstractSnippetMaxChars {
		return abstract
	}
	return string(runes[:abstractSnippetMaxChars]) + "..."
}

// roundScore rounds to 4 decimal places, matching the precision the
// client-facing score is specified to carry.
func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// RankParams bundles the tunables Rank needs, all sourced from Settings.
type RankParams struct {
	CandidateLimit      int
	PaperEmbeddingTTL   int
	EmbeddingMaxWorkers int
	K                   int
}

// Rank executes the full retrieval-and-reranking pipeline (C8): build an
// upstream query from the context, search, embed the context and any
// candidates not already cached, score by cosine similarity, and return
// the top K candidates by score descending.
// context_ is assumed already normalized and within MaxContextChars;
// the request entry point enforces that boundary before calling Rank.
func Rank(ctx context.Context, searcher Searcher, embedder Embedder, cache Cache, context_ string, params RankParams) (RankResult, error) {
	query := BuildUpstreamQuery(context_)

	candidates, err := searcher.SearchPapers(ctx, query, params.CandidateLimit)
	if err != nil {
		return RankResult{}, err
	}

	queryEmbedding, err := embedder.EmbedOne(ctx, context_, true)
	if err != nil {
		return RankResult{}, newError(KindUpstreamRequestError, err)
	}

	candidateEmbeddings := make([]Embedding, len(candidates))
	cachedUsed := 0

	var toEmbed []IndexedText
	contentHashes := make([]string, len(candidates))
	for i, cand := range candidates {
		hash := ContentHash(cand.Title, cand.Abstract)
		contentHashes[i] = hash

		text := BuildEmbeddingText(cand.Title, cand.Abstract)
		if text == "" {
			continue
		}

		if emb, ok, err := cache.Get(ctx, cand.PaperID, hash); err == nil && ok {
			candidateEmbeddings[i] = emb
			cachedUsed++
			continue
		}

		toEmbed = append(toEmbed, IndexedText{Index: i, Text: text})
	}

	if len(toEmbed) > 0 {
		embedded := embedder.EmbedBatchIndexed(ctx, toEmbed, params.EmbeddingMaxWorkers, true)
		for idx, emb := range embedded {
			candidateEmbeddings[idx] = emb
			_ = cache.Put(ctx, candidates[idx].PaperID, contentHashes[idx], emb, params.PaperEmbeddingTTL)
		}
	}

	ranked := make([]RankedPaper, 0, len(candidates))
	for i, cand := range candidates {
		if len(candidateEmbeddings[i]) == 0 {
			continue
		}
		ranked = append(ranked, RankedPaper{
			Paper: cand,
			Score: CosineSimilarity(queryEmbedding, candidateEmbeddings[i]),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	k := params.K
	if k > len(ranked) {
		k = len(ranked)
	}

	results := make([]Result, 0, k)
	for _, rp := range ranked[:k] {
		results = append(results, Result{
			PaperID:         rp.Paper.PaperID,
			Title:           rp.Paper.Title,
			Authors:         rp.Paper.Authors,
			Year:            rp.Paper.Year,
			Venue:           rp.Paper.Venue,
			URL:             rp.Paper.URL,
			Score:           roundScore(rp.Score),
			AbstractSnippet: abstractSnippet(rp.Paper.Abstract),
		})
	}

	return RankResult{
		Results: results,
		Meta: Meta{
			CandidatesFetched:    len(candidates),
			CachedEmbeddingsUsed: cachedUsed,
		},
	}, nil
}
