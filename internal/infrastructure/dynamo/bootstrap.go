package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gigmarket-api/internal/config"
	"go.uber.org/zap"
)

// Bootstrap creates the users, otps and refresh token tables if they don't
// already exist and enables TTL where records expire. Safe to call on every startup.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables, log *zap.Logger) {
	for _, t := range tableSpecs(tables) {
		createTable(ctx, client, t.input, log)
		if t.ttlAttr != "" {
			enableTTL(ctx, client, aws.ToString(t.input.TableName), t.ttlAttr, log)
		}
	}
}

const tableWaitTimeout = 30 * time.Second

type tableSpec struct {
	input   *dynamodb.CreateTableInput
	ttlAttr string
}

// tableSpecs describes every table. All are keyed by a single string hash key;
// phone uniqueness on users is kept with marker items, not a GSI.
func tableSpecs(tables config.DynamoTables) []tableSpec {
	return []tableSpec{
		{input: hashKeyTable(tables.Users, fieldUserID)},
		{input: hashKeyTable(tables.OTPs, fieldPhoneNumber), ttlAttr: fieldTTL},
		{input: hashKeyTable(tables.Tokens, fieldUserID), ttlAttr: fieldTTL},
	}
}

func hashKeyTable(name, hashKey string) *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput, log *zap.Logger) {
	table := aws.ToString(input.TableName)
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			log.Warn("could not create table", zap.String("table", table), zap.Error(err))
		}
		return
	}
	log.Info("created table", zap.String("table", table))

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, tableWaitTimeout); err != nil {
		log.Warn("table not active yet", zap.String("table", table), zap.Error(err))
	}
}

func enableTTL(ctx context.Context, client *dynamodb.Client, tableName, ttlAttr string, log *zap.Logger) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		// Re-enabling an active TTL fails with a validation error; only log.
		log.Debug("could not enable TTL", zap.String("table", tableName), zap.Error(err))
	}
}
