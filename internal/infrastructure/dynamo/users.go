package dynamo

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gigmarket-api/internal/domain"
)

// phoneMarkerPrefix keys the item that reserves a phone number in the users
// table. Marker items carry owner_id and no phone_number attribute.
const phoneMarkerPrefix = "PHONE#"

// deleteRounds bounds how often Delete re-reads a user whose phone changed
// between the read and the transaction.
const deleteRounds = 3

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// Create writes the user and its phone marker in one transaction.
// An existing user id or phone number yields domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	marker := map[string]types.AttributeValue{
		fieldUserID:  strValue(phoneMarkerPrefix + u.PhoneNumber),
		fieldOwnerID: strValue(u.UserID),
	}
	notExists := aws.String("attribute_not_exists(" + fieldUserID + ")")

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: marker, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: item, ConditionExpression: notExists}},
		},
	})
	if isTransactionCanceled(err) {
		return fmt.Errorf("user with phone %s: %w", u.PhoneNumber, domain.ErrConflict)
	}
	return err
}

// Get reads the user with a strongly consistent read, so a user created or
// deleted by a just-finished request is seen as such.
func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if _, isMarker := out.Item[fieldOwnerID]; isMarker {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone resolves the phone marker with a strongly consistent read, then loads the owner.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, phoneMarkerPrefix+phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	owner, ok := out.Item[fieldOwnerID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("user with phone %s: %w", phone, domain.ErrNotFound)
	}
	return r.Get(ctx, owner.Value)
}

// Update applies patch to an existing user and returns the updated item.
func (r *UserRepo) Update(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	updates := patchUpdates(patch)
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldUserID
	ue.Names["#ph"] = fieldPhoneNumber

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk) AND attribute_exists(#ph)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePhone moves userID from oldPhone to newPhone: the user item, the old
// marker and the new marker change in one transaction. A taken newPhone or a
// user no longer holding oldPhone yields domain.ErrConflict.
func (r *UserRepo) ChangePhone(ctx context.Context, userID, oldPhone, newPhone string) error {
	table := aws.String(r.tableName)
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           table,
				Key:                 strKey(fieldUserID, userID),
				UpdateExpression:    aws.String("SET #ph = :new, #u = :now"),
				ConditionExpression: aws.String("#ph = :old"),
				ExpressionAttributeNames: map[string]string{
					"#ph": fieldPhoneNumber,
					"#u":  fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":new": strValue(newPhone),
					":old": strValue(oldPhone),
					":now": strValue(time.Now().UTC().Format(time.RFC3339Nano)),
				},
			}},
			{Delete: &types.Delete{
				TableName:                 table,
				Key:                       strKey(fieldUserID, phoneMarkerPrefix+oldPhone),
				ConditionExpression:       aws.String("#o = :id"),
				ExpressionAttributeNames:  map[string]string{"#o": fieldOwnerID},
				ExpressionAttributeValues: map[string]types.AttributeValue{":id": strValue(userID)},
			}},
			{Put: &types.Put{
				TableName: table,
				Item: map[string]types.AttributeValue{
					fieldUserID:  strValue(phoneMarkerPrefix + newPhone),
					fieldOwnerID: strValue(userID),
				},
				ConditionExpression: aws.String("attribute_not_exists(" + fieldUserID + ")"),
			}},
		},
	})
	if isTransactionCanceled(err) {
		return fmt.Errorf("move user %s to phone %s: %w", userID, newPhone, domain.ErrConflict)
	}
	return err
}

// Delete removes the user and its phone marker in one transaction.
// A missing user yields domain.ErrNotFound.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	for round := 0; round < deleteRounds; round++ {
		u, err := r.Get(ctx, userID)
		if err != nil {
			return err
		}
		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: deleteUserItems(r.tableName, u),
		})
		if !isTransactionCanceled(err) {
			return err
		}
	}
	return fmt.Errorf("delete user %s: %w", userID, domain.ErrConflict)
}

// deleteUserItems deletes the user only while it still holds its phone, and
// the marker only while it still points at the user.
func deleteUserItems(table string, u *domain.User) []types.TransactWriteItem {
	return []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName:                 aws.String(table),
			Key:                       strKey(fieldUserID, u.UserID),
			ConditionExpression:       aws.String("#ph = :ph"),
			ExpressionAttributeNames:  map[string]string{"#ph": fieldPhoneNumber},
			ExpressionAttributeValues: map[string]types.AttributeValue{":ph": strValue(u.PhoneNumber)},
		}},
		{Delete: &types.Delete{
			TableName:                 aws.String(table),
			Key:                       strKey(fieldUserID, phoneMarkerPrefix+u.PhoneNumber),
			ConditionExpression:       aws.String("#o = :id"),
			ExpressionAttributeNames:  map[string]string{"#o": fieldOwnerID},
			ExpressionAttributeValues: map[string]types.AttributeValue{":id": strValue(u.UserID)},
		}},
	}
}

// List returns a page of users, skipping phone markers.
// cursor is a base64-encoded user_id used as ExclusiveStartKey; an empty next
// cursor means there are no more pages. A page may hold fewer than limit users.
func (r *UserRepo) List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("attribute_exists(#ph)"),
		ExpressionAttributeNames: map[string]string{"#ph": fieldPhoneNumber},
		Limit:                    aws.Int32(limit),
	}
	if cursor != "" {
		userID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("decode %q: %w", cursor, domain.ErrBadCursor)
		}
		input.ExclusiveStartKey = strKey(fieldUserID, userID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	users := make([]domain.User, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, "", err
	}
	next := ""
	if v, ok := out.LastEvaluatedKey[fieldUserID].(*types.AttributeValueMemberS); ok {
		next = encodeCursor(v.Value)
	}
	return users, next, nil
}

// patchUpdates maps the non-nil fields of patch to attribute names.
func patchUpdates(p domain.UserPatch) map[string]interface{} {
	updates := make(map[string]interface{})
	put := func(field string, v *string) {
		if v != nil {
			updates[field] = *v
		}
	}
	put(fieldName, p.Name)
	put(fieldEmail, p.Email)
	put(fieldAddress, p.Address)
	put(fieldCity, p.City)
	put(fieldState, p.State)
	put(fieldZip, p.Zip)
	put(fieldCountry, p.Country)
	put(fieldStatus, p.Status)
	put(fieldRole, p.Role)
	if p.PasswordChangedAt != nil {
		updates[fieldPasswordChangedAt] = p.PasswordChangedAt.UTC()
	}
	return updates
}

func encodeCursor(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
