package paper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithy "github.com/aws/smithy-go"
)

// RateLimiter enforces a per-source-IP, per-minute request ceiling via a
// single atomic DynamoDB UpdateItem, matching build_bucket_key and
// check_rate_limit in the source this was distilled from: no read then
// write, so concurrent requests in the same minute bucket cannot race
// past the limit.
type RateLimiter struct {
	db    DynamoAPI
	table string
}

func NewRateLimiter(db DynamoAPI, table string) *RateLimiter {
	return &RateLimiter{db: db, table: table}
}

// bucketKey returns "{ip}#{minute}", where minute is the Unix-epoch
// minute of t.
func bucketKey(sourceIP string, t time.Time) string {
	return fmt.Sprintf("%s#%d", sourceIP, t.Unix()/60)
}

// Allow increments the counter for sourceIP's current minute bucket and
// reports whether the request is within perMinuteLimit. It returns
// (false, nil) when the limit was exceeded — a normal outcome, not an
// error — and (false, err) only when the DynamoDB call itself failed.
func (r *RateLimiter) Allow(ctx context.Context, sourceIP string, perMinuteLimit int) (bool, error) {
	now := time.Now()
	key := bucketKey(sourceIP, now)
	minute := now.Unix() / 60
	ttl := minute*60 + 180

	_, err := r.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"bucketKey": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression: aws.String("SET #c = if_not_exists(#c, :zero) + :one, #t = :ttl"),
		ConditionExpression: aws.String(
			"attribute_not_exists(#c) OR #c < :limit",
		),
		ExpressionAttributeNames: map[string]string{
			"#c": "requestCount",
			"#t": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":limit": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", perMinuteLimit)},
			":ttl":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
		},
	})
	if err == nil {
		return true, nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
		return false, nil
	}

	return false, fmt.Errorf("check rate limit: %w", err)
}
