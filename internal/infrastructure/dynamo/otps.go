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

// ttlGrace keeps a record around after its code or block expires so the
// issuance counter survives until the table's TTL sweep.
const ttlGrace = 24 * time.Hour

// otpNames covers every attribute the OTP expressions touch. ttl is a reserved word.
var otpNames = map[string]string{
	"#c":   fieldCode,
	"#e":   fieldExpiresAt,
	"#a":   fieldAttempts,
	"#b":   fieldIsBlocked,
	"#bu":  fieldBlockedUntil,
	"#ca":  fieldCreatedAt,
	"#ttl": fieldTTL,
}

// OTPRepo stores one OTP record per phone number. Every transition is a
// single conditional write; a failed condition is domain.ErrConflict.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) FindOrCreate(ctx context.Context, phone string, now int64) (*domain.OTPRecord, error) {
	return r.update(ctx, phone,
		"SET #ca = if_not_exists(#ca, :now), #a = if_not_exists(#a, :zero), #b = if_not_exists(#b, :f)",
		"",
		map[string]types.AttributeValue{
			":now":  numValue(now),
			":zero": numValue(0),
			":f":    boolValue(false),
		},
		[]string{"#ca", "#a", "#b"},
	)
}

func (r *OTPRepo) Unblock(ctx context.Context, phone string, now int64) error {
	_, err := r.update(ctx, phone,
		"SET #b = :f, #a = :zero REMOVE #bu",
		"#b = :t AND #bu <= :now",
		map[string]types.AttributeValue{
			":f":    boolValue(false),
			":t":    boolValue(true),
			":zero": numValue(0),
			":now":  numValue(now),
		},
		[]string{"#b", "#a", "#bu"},
	)
	return err
}

func (r *OTPRepo) Block(ctx context.Context, phone string, until int64, maxIssues int) error {
	_, err := r.update(ctx, phone,
		"SET #b = :t, #bu = :until, #ttl = :ttl",
		"#b = :f AND #a >= :max",
		map[string]types.AttributeValue{
			":t":     boolValue(true),
			":f":     boolValue(false),
			":until": numValue(until),
			":ttl":   numValue(until + int64(ttlGrace/time.Second)),
			":max":   numValue(int64(maxIssues)),
		},
		[]string{"#b", "#bu", "#ttl", "#a"},
	)
	return err
}

func (r *OTPRepo) Issue(ctx context.Context, phone, code string, expiresAt int64, maxIssues int) (*domain.OTPRecord, error) {
	return r.update(ctx, phone,
		"SET #c = :code, #e = :exp, #ttl = :ttl ADD #a :one",
		"#b = :f AND #a < :max",
		map[string]types.AttributeValue{
			":code": strValue(code),
			":exp":  numValue(expiresAt),
			":ttl":  numValue(expiresAt + int64(ttlGrace/time.Second)),
			":one":  numValue(1),
			":f":    boolValue(false),
			":max":  numValue(int64(maxIssues)),
		},
		[]string{"#c", "#e", "#ttl", "#a", "#b"},
	)
}

func (r *OTPRepo) Get(ctx context.Context, phone string) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldPhoneNumber, phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record %s: %w", phone, domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	return &rec, nil
}

func (r *OTPRepo) Delete(ctx context.Context, phone string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldPhoneNumber, phone),
	})
	return err
}

// Consume deletes the record only while it still holds code, so a code can
// be redeemed once even under concurrent verification.
func (r *OTPRepo) Consume(ctx context.Context, phone, code string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldPhoneNumber, phone),
		ConditionExpression:       aws.String("#c = :code"),
		ExpressionAttributeNames:  map[string]string{"#c": fieldCode},
		ExpressionAttributeValues: map[string]types.AttributeValue{":code": strValue(code)},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("consume otp %s: %w", phone, domain.ErrConflict)
	}
	return err
}

// update runs a conditional UpdateItem returning the new item. names lists the
// placeholders the expressions use; DynamoDB rejects unused ones.
func (r *OTPRepo) update(ctx context.Context, phone, expr, cond string, values map[string]types.AttributeValue, names []string) (*domain.OTPRecord, error) {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldPhoneNumber, phone),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  pickNames(otpNames, names),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if cond != "" {
		input.ConditionExpression = aws.String(cond)
	}
	out, err := r.client.UpdateItem(ctx, input)
	if isConditionFailed(err) {
		return nil, fmt.Errorf("otp record %s: %w", phone, domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	return &rec, nil
}

func pickNames(all map[string]string, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = all[k]
	}
	return out
}
