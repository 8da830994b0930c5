package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gigmarket-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	op   string
	body map[string]interface{}
}

// fakeDynamo answers DynamoDB JSON requests over HTTP and records them.
type fakeDynamo struct {
	mu    sync.Mutex
	calls []apiCall
	reply func(op string, body map[string]interface{}) (int, string)
}

func (f *fakeDynamo) recorded() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newFakeDynamo(t *testing.T, reply func(op string, body map[string]interface{}) (int, string)) (*dynamodb.Client, *fakeDynamo) {
	t.Helper()
	f := &fakeDynamo{reply: reply}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		op := strings.TrimPrefix(r.Header.Get("X-Amz-Target"), "DynamoDB_20120810.")

		f.mu.Lock()
		f.calls = append(f.calls, apiCall{op: op, body: body})
		f.mu.Unlock()

		status, resp := f.reply(op, body)
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)

	client := dynamodb.New(dynamodb.Options{
		Region:           "us-east-1",
		BaseEndpoint:     aws.String(srv.URL),
		Credentials:      credentials.NewStaticCredentialsProvider("test", "test", ""),
		RetryMaxAttempts: 1,
	})
	return client, f
}

const (
	userItemJSON   = `{"Item":{"user_id":{"S":"u1"},"phone_number":{"S":"9999999999"},"role":{"S":"customer"},"created_at":{"S":"2026-01-01T00:00:00Z"},"updated_at":{"S":"2026-01-01T00:00:00Z"}}}`
	markerItemJSON = `{"Item":{"user_id":{"S":"PHONE#9999999999"},"owner_id":{"S":"u1"}}}`
	canceledJSON   = `{"__type":"com.amazonaws.dynamodb.v20120810#TransactionCanceledException","message":"Transaction cancelled"}`
)

// keyOf returns the user_id of a request Key or Item.
func keyOf(m interface{}) string {
	attrs, _ := m.(map[string]interface{})
	v, _ := attrs[fieldUserID].(map[string]interface{})
	s, _ := v["S"].(string)
	return s
}

func TestUserRepo_Get_ConsistentRead(t *testing.T) {
	client, fake := newFakeDynamo(t, func(op string, _ map[string]interface{}) (int, string) {
		return http.StatusOK, userItemJSON
	})
	repo := NewUserRepo(client, "users")

	u, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "9999999999", u.PhoneNumber)

	calls := fake.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "GetItem", calls[0].op)
	assert.Equal(t, true, calls[0].body["ConsistentRead"])
}

func TestUserRepo_GetByPhone_BothReadsConsistent(t *testing.T) {
	client, fake := newFakeDynamo(t, func(op string, body map[string]interface{}) (int, string) {
		if strings.HasPrefix(keyOf(body["Key"]), phoneMarkerPrefix) {
			return http.StatusOK, markerItemJSON
		}
		return http.StatusOK, userItemJSON
	})
	repo := NewUserRepo(client, "users")

	u, err := repo.GetByPhone(context.Background(), "9999999999")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "PHONE#9999999999", keyOf(calls[0].body["Key"]))
	assert.Equal(t, "u1", keyOf(calls[1].body["Key"]))
	for _, c := range calls {
		assert.Equal(t, true, c.body["ConsistentRead"], c.op)
	}
}

func TestUserRepo_Get_MarkerIsNotAUser(t *testing.T) {
	client, _ := newFakeDynamo(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusOK, markerItemJSON
	})
	_, err := NewUserRepo(client, "users").Get(context.Background(), "PHONE#9999999999")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_Delete_RemovesMarkerInSameTransaction(t *testing.T) {
	client, fake := newFakeDynamo(t, func(op string, _ map[string]interface{}) (int, string) {
		if op == "GetItem" {
			return http.StatusOK, userItemJSON
		}
		return http.StatusOK, `{}`
	})
	repo := NewUserRepo(client, "users")

	require.NoError(t, repo.Delete(context.Background(), "u1"))

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "TransactWriteItems", calls[1].op)
	items, _ := calls[1].body["TransactItems"].([]interface{})
	require.Len(t, items, 2)

	var deleted []string
	for _, it := range items {
		del, ok := it.(map[string]interface{})["Delete"].(map[string]interface{})
		require.True(t, ok, "every item is a Delete")
		deleted = append(deleted, keyOf(del["Key"]))
	}
	assert.ElementsMatch(t, []string{"u1", "PHONE#9999999999"}, deleted)
}

func TestUserRepo_Delete_Missing(t *testing.T) {
	client, fake := newFakeDynamo(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusOK, `{}`
	})

	err := NewUserRepo(client, "users").Delete(context.Background(), "u1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Len(t, fake.recorded(), 1, "no transaction for a missing user")
}

func TestUserRepo_Delete_GivesUpAfterRepeatedCancels(t *testing.T) {
	client, fake := newFakeDynamo(t, func(op string, _ map[string]interface{}) (int, string) {
		if op == "GetItem" {
			return http.StatusOK, userItemJSON
		}
		return http.StatusBadRequest, canceledJSON
	})

	err := NewUserRepo(client, "users").Delete(context.Background(), "u1")
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Len(t, fake.recorded(), 2*deleteRounds)
}

func TestUserRepo_ChangePhone(t *testing.T) {
	client, fake := newFakeDynamo(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusOK, `{}`
	})
	require.NoError(t, NewUserRepo(client, "users").ChangePhone(context.Background(), "u1", "1111111111", "2222222222"))

	calls := fake.recorded()
	require.Len(t, calls, 1)
	items, _ := calls[0].body["TransactItems"].([]interface{})
	require.Len(t, items, 3)
	upd := items[0].(map[string]interface{})["Update"].(map[string]interface{})
	del := items[1].(map[string]interface{})["Delete"].(map[string]interface{})
	put := items[2].(map[string]interface{})["Put"].(map[string]interface{})
	assert.Equal(t, "u1", keyOf(upd["Key"]))
	assert.Equal(t, "PHONE#1111111111", keyOf(del["Key"]))
	assert.Equal(t, "PHONE#2222222222", keyOf(put["Item"]))
}

func TestUserRepo_ChangePhone_Taken(t *testing.T) {
	client, _ := newFakeDynamo(t, func(string, map[string]interface{}) (int, string) {
		return http.StatusBadRequest, canceledJSON
	})
	err := NewUserRepo(client, "users").ChangePhone(context.Background(), "u1", "1111111111", "2222222222")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}
