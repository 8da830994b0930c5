package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/transport/http/respond"
	"github.com/stretchr/testify/assert"
)

func serveWithRole(role string, allowed ...string) *httptest.ResponseRecorder {
	ctx := context.Background()
	if role != "" {
		ctx = WithUser(ctx, &domain.User{UserID: "u1", Role: role})
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	RequireRole(respond.New(false, nil), allowed...)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	return rr
}

func TestRequireRole_NoUserInContext(t *testing.T) {
	rr := serveWithRole("", domain.RoleAdmin)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRole_WrongRole(t *testing.T) {
	rr := serveWithRole(domain.RoleCustomer, domain.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "You are not authorized to access this route. Your role is customer", message(t, rr))
}

func TestRequireRole_CorrectRole(t *testing.T) {
	rr := serveWithRole(domain.RoleAdmin, domain.RoleAdmin)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole_MultipleAllowedRoles(t *testing.T) {
	rr := serveWithRole(domain.RoleSeller, domain.RoleAdmin, domain.RoleSeller)
	assert.Equal(t, http.StatusOK, rr.Code)
}
