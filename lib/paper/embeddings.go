package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"golang.org/x/sync/errgroup"

	"github.com/dantee-nv/paper-search/lib/logger"
)

// EmbeddingClient wraps a Bedrock runtime client bound to one model id.
// Mirrors the teacher's EmbeddingService: a thin struct around a single
// AWS SDK client plus the one model it was built for.
type EmbeddingClient struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewEmbeddingClient builds an EmbeddingClient from an already-resolved
// aws.Config, the way the teacher resolves its SageMaker client from a
// shared config rather than hand-rolling credentials.
func NewEmbeddingClient(cfg aws.Config, modelID string) *EmbeddingClient {
	return &EmbeddingClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}
}

type embedRequest struct {
	InputText string `json:"inputText"`
	Normalize bool   `json:"normalize"`
}

type embedResponse struct {
	Embedding  []float64   `json:"embedding"`
	Embeddings [][]float64 `json:"embeddings"`
}

// EmbedOne embeds a single text. normalize is passed through to the
// model request; the caller decides whether query and candidate
// embeddings should both be normalized (they should, to keep cosine
// similarity meaningful).
func (c *EmbeddingClient) EmbedOne(ctx context.Context, text string, normalize bool) (Embedding, error) {
	body, err := json.Marshal(embedRequest{InputText: text, Normalize: normalize})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", err)
	}

	var resp embedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal embed response: %w", err)
	}

	if len(resp.Embedding) > 0 {
		return Embedding(resp.Embedding), nil
	}
	if len(resp.Embeddings) > 0 {
		return Embedding(resp.Embeddings[0]), nil
	}
	return nil, fmt.Errorf("embed response contained no vector")
}

// IndexedText is one item of a batch embedding request, carrying its
// position in the caller's original slice so results can be placed back
// without requiring the batch to preserve order itself.
type IndexedText struct {
	Index int
	Text  string
}

// NewIndexedTexts pairs texts with their positions for EmbedBatchIndexed.
func NewIndexedTexts(texts []string) []IndexedText {
	items := make([]IndexedText, len(texts))
	for i, t := range texts {
		items[i] = IndexedText{Index: i, Text: t}
	}
	return items
}

// EmbedBatchIndexed embeds many texts concurrently, bounded to
// maxWorkers in flight at once. A single item's failure is logged and
// the item is simply absent from the returned map - the batch call
// itself never fails, matching the original's per-future error capture
// in embed_texts_indexed. The teacher's hand-rolled channel semaphore
// (lib/paper/embeddings.go GenerateEmbeddings) is replaced here with
// errgroup.SetLimit, the idiomatic equivalent.
func (c *EmbeddingClient) EmbedBatchIndexed(ctx context.Context, items []IndexedText, maxWorkers int, normalize bool) map[int]Embedding {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	results := make(map[int]Embedding, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for _, item := range items {
		item := item
		g.Go(func() error {
			emb, err := c.EmbedOne(gctx, item.Text, normalize)
			if err != nil {
				logger.Warn("embedding failed for batch item", map[string]interface{}{
					"index": item.Index,
					"error": err.Error(),
				})
				return nil
			}
			mu.Lock()
			results[item.Index] = emb
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
