package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gigmarket-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	New(false, nil).JSON(rr, http.StatusOK, map[string]string{"a": "b"}, "done")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	env := decode(t, rr)
	assert.True(t, env.Success)
	assert.Equal(t, 200, env.StatusCode)
	assert.Equal(t, "done", env.Message)
	assert.Equal(t, map[string]interface{}{"a": "b"}, env.Data)
}

func TestError_DomainError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	New(false, nil).Error(rr, req, domain.NewError(domain.KindExpired, "OTP has expired"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decode(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, "OTP has expired", env.Message)
	assert.Empty(t, env.Stack)
	assert.Nil(t, env.Data)
}

func TestError_RateLimitedSetsRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	New(false, nil).Error(rr, req, domain.RateLimited("Too many attempts. Try again in 10 minutes.", 10))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "600", rr.Header().Get("Retry-After"))
}

func TestError_UnknownErrorIsHidden(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	New(false, nil).Error(rr, req, errors.New("dynamo exploded"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	env := decode(t, rr)
	assert.Equal(t, "Internal Server Error", env.Message)
	assert.NotContains(t, rr.Body.String(), "dynamo exploded")
}

func TestError_StackOutsideProduction(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	New(true, nil).Error(rr, req, domain.NewError(domain.KindForbidden, "nope"))

	env := decode(t, rr)
	assert.Equal(t, http.StatusForbidden, env.StatusCode)
	assert.NotEmpty(t, env.Stack)
}

func TestFail(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	New(false, nil).Fail(rr, req, http.StatusUnauthorized, "Token was not provided!")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Token was not provided!", decode(t, rr).Message)
}
