package paper

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamoDB is an in-memory stand-in for DynamoAPI, playing the same
// role as the original's reset_ddb_client_for_tests fixture: tests
// exercise cache.go and ratelimit.go without talking to real AWS.
type fakeDynamoDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: make(map[string]map[string]types.AttributeValue)}
}

func keyFor(key map[string]types.AttributeValue) string {
	for _, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			return s.Value
		}
	}
	return ""
}

func (f *fakeDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := f.items[keyFor(params.Key)]
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamoDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, _ := params.Item["paperId"].(*types.AttributeValueMemberS)
	f.items[s.Value] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem emulates the single conditional increment ratelimit.go
// performs: SET requestCount = if_not_exists(requestCount, 0) + 1,
// gated on "attribute_not_exists(requestCount) OR requestCount <
// :limit". It does not interpret arbitrary expressions, only this one
// shape.
func (f *fakeDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keyFor(params.Key)
	limitAttr := params.ExpressionAttributeValues[":limit"].(*types.AttributeValueMemberN)
	limit, _ := strconv.Atoi(limitAttr.Value)

	item, exists := f.items[key]
	count := 0
	if exists {
		if n, ok := item["requestCount"].(*types.AttributeValueMemberN); ok {
			count, _ = strconv.Atoi(n.Value)
		}
	}

	if exists && count >= limit {
		return nil, &types.ConditionalCheckFailedException{}
	}

	count++
	f.items[key] = map[string]types.AttributeValue{
		"bucketKey":    &types.AttributeValueMemberS{Value: key},
		"requestCount": &types.AttributeValueMemberN{Value: strconv.Itoa(count)},
	}
	return &dynamodb.UpdateItemOutput{}, nil
}
