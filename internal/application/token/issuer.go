package token

import (
	"context"
	"errors"
	"time"

	"github.com/gigmarket-api/internal/domain"
	jwtinfra "github.com/gigmarket-api/internal/infrastructure/jwt"
	"go.uber.org/zap"
)

// Store persists one refresh-token record per user.
type Store interface {
	Upsert(ctx context.Context, rec *domain.TokenRecord) error
	GetByUser(ctx context.Context, userID string) (*domain.TokenRecord, error)
	// Replace swaps the stored token only while it still equals oldToken and is not blacklisted.
	Replace(ctx context.Context, rec *domain.TokenRecord, oldToken string) error
	// Blacklist flags the user's record if it holds token; otherwise domain.ErrNotFound.
	Blacklist(ctx context.Context, userID, token string) error
}

type UserReader interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Signer is the subset of jwtinfra.Provider the issuer needs.
type Signer interface {
	SignAccess(userID, role string) (string, error)
	SignRefresh(userID, role string) (string, error)
	VerifyRefresh(token string) (*jwtinfra.Claims, error)
	Subject(token string) (string, error)
}

// Issuer mints token pairs and keeps the refresh-token record in step.
type Issuer struct {
	tokens    Store
	users     UserReader
	signer    Signer
	recordTTL time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewIssuer(tokens Store, users UserReader, signer Signer, recordTTL time.Duration, log *zap.Logger) *Issuer {
	return &Issuer{
		tokens:    tokens,
		users:     users,
		signer:    signer,
		recordTTL: recordTTL,
		log:       log.With(zap.String("service", "token")),
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// IssuePair signs a new pair and overwrites the user's record with the refresh token.
// A previously blacklisted record is reset.
func (i *Issuer) IssuePair(ctx context.Context, userID, role string) (*domain.TokenPair, error) {
	pair, err := i.sign(userID, role)
	if err != nil {
		return nil, err
	}
	now := i.now().UTC()
	rec := &domain.TokenRecord{
		UserID:    userID,
		Token:     pair.RefreshToken,
		ExpiresAt: now.Add(i.recordTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := i.tokens.Upsert(ctx, rec); err != nil {
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while saving the refresh token", err)
	}
	return pair, nil
}

// Rotate exchanges a live refresh token for a new pair. The old token stops working.
func (i *Issuer) Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	owner, err := i.signer.Subject(refreshToken)
	if err != nil {
		return nil, invalidOrExpired()
	}
	rec, err := i.tokens.GetByUser(ctx, owner)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, invalidOrExpired()
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while reading the refresh token", err)
	}
	if !rec.Holds(refreshToken) || !rec.Usable(i.now()) {
		return nil, invalidOrExpired()
	}

	claims, err := i.signer.VerifyRefresh(refreshToken)
	if err != nil {
		i.log.Debug("refresh token rejected", zap.String("user", owner), zap.Error(err))
		return nil, domain.WrapError(domain.KindForbidden, "Invalid refresh token", err)
	}
	if claims.UserID != rec.UserID {
		return nil, domain.NewError(domain.KindForbidden, "Invalid refresh token")
	}

	u, err := i.users.Get(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.KindNotFound, "User not found")
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while loading the user", err)
	}

	pair, err := i.sign(u.UserID, u.Role)
	if err != nil {
		return nil, err
	}
	now := i.now().UTC()
	next := &domain.TokenRecord{
		UserID:    u.UserID,
		Token:     pair.RefreshToken,
		ExpiresAt: now.Add(i.recordTTL),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: now,
	}
	if err := i.tokens.Replace(ctx, next, refreshToken); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, invalidOrExpired()
		}
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while saving the refresh token", err)
	}
	return pair, nil
}

// Revoke blacklists the record holding refreshToken. An unknown token is not an error.
func (i *Issuer) Revoke(ctx context.Context, refreshToken, userID string) error {
	if refreshToken == "" {
		return domain.NewError(domain.KindBadRequest, "Refresh token is required")
	}
	if _, err := i.users.Get(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.KindNotFound, "User not found")
		}
		return domain.WrapError(domain.KindInternal, "Something went wrong while loading the user", err)
	}

	owner, err := i.signer.Subject(refreshToken)
	if err != nil {
		return nil
	}
	err = i.tokens.Blacklist(ctx, owner, refreshToken)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.WrapError(domain.KindInternal, "Something went wrong while revoking the refresh token", err)
	}
	if owner != userID {
		i.log.Info("refresh token revoked by another user", zap.String("owner", owner), zap.String("by", userID))
	}
	return nil
}

func (i *Issuer) sign(userID, role string) (*domain.TokenPair, error) {
	access, err := i.signer.SignAccess(userID, role)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while signing the access token", err)
	}
	refresh, err := i.signer.SignRefresh(userID, role)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while signing the refresh token", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func invalidOrExpired() *domain.Error {
	return domain.NewError(domain.KindUnauthorized, "Invalid or expired token")
}
