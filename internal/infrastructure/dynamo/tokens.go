package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gigmarket-api/internal/domain"
)

// TokenRepo stores the refresh-token record of each user, keyed by user_id.
type TokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTokenRepo(client *dynamodb.Client, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName}
}

func (r *TokenRepo) Upsert(ctx context.Context, rec *domain.TokenRecord) error {
	item, err := tokenItem(rec)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TokenRepo) GetByUser(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("token record %s: %w", userID, domain.ErrNotFound)
	}
	var rec domain.TokenRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal token record: %w", err)
	}
	return &rec, nil
}

// Replace overwrites the record only while it still holds oldToken and is not blacklisted.
func (r *TokenRepo) Replace(ctx context.Context, rec *domain.TokenRecord, oldToken string) error {
	item, err := tokenItem(rec)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("#t = :old AND #bl = :f"),
		ExpressionAttributeNames: map[string]string{
			"#t":  fieldToken,
			"#bl": fieldBlacklisted,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":old": strValue(oldToken),
			":f":   boolValue(false),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("replace token of %s: %w", rec.UserID, domain.ErrConflict)
	}
	return err
}

func (r *TokenRepo) Blacklist(ctx context.Context, userID, token string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldUserID, userID),
		UpdateExpression:    aws.String("SET #bl = :t, #u = :now"),
		ConditionExpression: aws.String("#t = :tok"),
		ExpressionAttributeNames: map[string]string{
			"#bl": fieldBlacklisted,
			"#u":  fieldUpdatedAt,
			"#t":  fieldToken,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   boolValue(true),
			":now": strValue(time.Now().UTC().Format(time.RFC3339Nano)),
			":tok": strValue(token),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("token record %s: %w", userID, domain.ErrNotFound)
	}
	return err
}

// tokenItem marshals rec and stamps the TTL attribute from its expiry.
func tokenItem(rec *domain.TokenRecord) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal token record: %w", err)
	}
	item[fieldTTL] = numValue(rec.ExpiresAt.Add(ttlGrace).Unix())
	return item, nil
}
