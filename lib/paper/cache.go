package paper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dantee-nv/paper-search/lib/logger"
)

// DynamoAPI is the subset of the DynamoDB client the cache and rate
// limiter depend on. Accepting an interface, rather than the concrete
// *dynamodb.Client, is the Go analogue of the original's
// reset_ddb_client_for_tests: tests inject a fake without touching real
// AWS.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// EmbeddingCache is a content-addressed DynamoDB-backed store for
// candidate paper embeddings, keyed by paperId with a contentHash
// validation field so a paper whose title or abstract changed upstream
// is transparently treated as a cache miss.
type EmbeddingCache struct {
	db    DynamoAPI
	table string
}

func NewEmbeddingCache(db DynamoAPI, table string) *EmbeddingCache {
	return &EmbeddingCache{db: db, table: table}
}

type cacheItem struct {
	PaperID     string   `dynamodbav:"paperId"`
	ContentHash string   `dynamodbav:"contentHash"`
	Embedding   []string `dynamodbav:"embedding"`
	UpdatedAt   string   `dynamodbav:"updatedAt"`
	TTL         int64    `dynamodbav:"ttl"`
}

// formatNumber renders a float with up to 8 decimal digits, trimming
// trailing zeros, matching the original's _format_number. Put stores
// each formatted component as a string (S) inside the embedding list;
// the components are not stored as DynamoDB number (N) values.
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', 8, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "" || s == "-" {
		s = "0"
	}
	return s
}

// Get looks up the embedding cached for paperID and validates it was
// computed from the same contentHash. Any miss, mismatch, or decode
// failure is reported as (nil, false, nil): a cache is never allowed to
// turn into a request failure (§4.4).
func (c *EmbeddingCache) Get(ctx context.Context, paperID, contentHash string) (Embedding, bool, error) {
	if c.table == "" {
		return nil, false, nil
	}

	out, err := c.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"paperId": &types.AttributeValueMemberS{Value: paperID},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get cached embedding: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		logger.Warn("failed to decode cached embedding", map[string]interface{}{"paperId": paperID, "error": err.Error()})
		return nil, false, nil
	}
	if item.ContentHash != contentHash {
		return nil, false, nil
	}

	embedding := make(Embedding, 0, len(item.Embedding))
	for _, raw := range item.Embedding {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Warn("failed to parse cached embedding component", map[string]interface{}{"paperId": paperID, "error": err.Error()})
			return nil, false, nil
		}
		embedding = append(embedding, v)
	}

	return embedding, true, nil
}

// Put stores embedding under paperID with the given contentHash and a
// TTL of now + max(1, ttlDays) days.
func (c *EmbeddingCache) Put(ctx context.Context, paperID, contentHash string, embedding Embedding, ttlDays int) error {
	if c.table == "" {
		return nil
	}
	if ttlDays < 1 {
		ttlDays = 1
	}

	components := make([]string, len(embedding))
	for i, v := range embedding {
		components[i] = formatNumber(v)
	}

	now := time.Now().UTC()
	item := cacheItem{
		PaperID:     paperID,
		ContentHash: contentHash,
		Embedding:   components,
		UpdatedAt:   now.Format(time.RFC3339),
		TTL:         now.Add(time.Duration(ttlDays) * 24 * time.Hour).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal cache item: %w", err)
	}

	_, err = c.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put cached embedding: %w", err)
	}
	return nil
}
