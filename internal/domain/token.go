package domain

import (
	"crypto/subtle"
	"time"
)

// TokenRecord is the persisted refresh token of a user. One per user.
type TokenRecord struct {
	UserID      string    `json:"user" dynamodbav:"user_id"`
	Token       string    `json:"-" dynamodbav:"token"`
	ExpiresAt   time.Time `json:"expires" dynamodbav:"expires_at"`
	Blacklisted bool      `json:"blacklisted" dynamodbav:"blacklisted"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// Usable reports whether the record may still be exchanged at now.
func (t *TokenRecord) Usable(now time.Time) bool {
	return !t.Blacklisted && t.ExpiresAt.After(now)
}

// Holds reports whether the record stores token. The comparison is constant time.
func (t *TokenRecord) Holds(token string) bool {
	return subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) == 1
}

// TokenPair is an access/refresh token pair handed to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenRequest is the body of POST /auth/refresh-token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest is the body of POST /auth/logout. The token is checked by the
// service so a missing value answers with its own message.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}
