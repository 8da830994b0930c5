package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gigmarket-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPStore_Conditions(t *testing.T) {
	s := NewOTPStore()
	ctx := context.Background()

	rec, err := s.FindOrCreate(ctx, "p1", 100)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Attempts)

	for i := 0; i < 2; i++ {
		_, err := s.Issue(ctx, "p1", "123456", 700, 2)
		require.NoError(t, err)
	}
	_, err = s.Issue(ctx, "p1", "123456", 700, 2)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	// Not yet elapsed.
	require.NoError(t, s.Block(ctx, "p1", 800, 2))
	assert.True(t, errors.Is(s.Block(ctx, "p1", 800, 2), domain.ErrConflict))
	assert.True(t, errors.Is(s.Unblock(ctx, "p1", 799), domain.ErrConflict))

	require.NoError(t, s.Unblock(ctx, "p1", 800))
	rec, err = s.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, rec.IsBlocked)
	assert.Zero(t, rec.Attempts)
	assert.Zero(t, rec.BlockedUntil)
}

func TestOTPStore_Consume(t *testing.T) {
	s := NewOTPStore()
	ctx := context.Background()
	_, err := s.FindOrCreate(ctx, "p1", 100)
	require.NoError(t, err)
	_, err = s.Issue(ctx, "p1", "111111", 700, 3)
	require.NoError(t, err)

	assert.True(t, errors.Is(s.Consume(ctx, "p1", "222222"), domain.ErrConflict))
	require.NoError(t, s.Consume(ctx, "p1", "111111"))
	assert.True(t, errors.Is(s.Consume(ctx, "p1", "111111"), domain.ErrNotFound))
}

func TestTokenStore_ReplaceAndBlacklist(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, &domain.TokenRecord{UserID: "u1", Token: "a", ExpiresAt: time.Now().Add(time.Hour)}))

	assert.True(t, errors.Is(s.Replace(ctx, &domain.TokenRecord{UserID: "u1", Token: "b"}, "x"), domain.ErrConflict))
	require.NoError(t, s.Replace(ctx, &domain.TokenRecord{UserID: "u1", Token: "b"}, "a"))

	assert.True(t, errors.Is(s.Blacklist(ctx, "u1", "a"), domain.ErrNotFound))
	require.NoError(t, s.Blacklist(ctx, "u1", "b"))

	rec, err := s.GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.Blacklisted)
	assert.True(t, errors.Is(s.Replace(ctx, &domain.TokenRecord{UserID: "u1", Token: "c"}, "b"), domain.ErrConflict))
}

func TestUserStore_UniquePhoneAndPaging(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "a", PhoneNumber: "1", Role: domain.RoleCustomer}))
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "b", PhoneNumber: "2", Role: domain.RoleCustomer}))
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "c", PhoneNumber: "3", Role: domain.RoleCustomer}))

	err := s.Create(ctx, &domain.User{UserID: "d", PhoneNumber: "1"})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	u, err := s.GetByPhone(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "b", u.UserID)

	page, next, err := s.List(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "b", next)

	page, next, err = s.List(ctx, 2, next)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].UserID)
	assert.Empty(t, next)
}

func TestUserStore_Update(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "a", PhoneNumber: "1", Role: domain.RoleCustomer}))

	name := "Ada"
	u, err := s.Update(ctx, "a", domain.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)

	_, err = s.Update(ctx, "missing", domain.UserPatch{Name: &name})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserStore_DeleteFreesPhone(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "a", PhoneNumber: "1"}))

	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = s.GetByPhone(ctx, "1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, "a"), domain.ErrNotFound))

	// The number is free for a new account.
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "b", PhoneNumber: "1"}))
}

func TestUserStore_ChangePhone(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "a", PhoneNumber: "1"}))
	require.NoError(t, s.Create(ctx, &domain.User{UserID: "b", PhoneNumber: "2"}))

	assert.True(t, errors.Is(s.ChangePhone(ctx, "a", "1", "2"), domain.ErrConflict))
	assert.True(t, errors.Is(s.ChangePhone(ctx, "a", "9", "3"), domain.ErrConflict))

	require.NoError(t, s.ChangePhone(ctx, "a", "1", "3"))
	u, err := s.GetByPhone(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "a", u.UserID)
	_, err = s.GetByPhone(ctx, "1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
