package http

import (
	"context"

	"github.com/gigmarket-api/internal/application/otp"
	"github.com/gigmarket-api/internal/application/token"
	"github.com/gigmarket-api/internal/domain"
	jwtinfra "github.com/gigmarket-api/internal/infrastructure/jwt"
	"github.com/gigmarket-api/internal/infrastructure/sms"
)

// UserRepository is the interface the router requires from a user store.
// dynamo.UserRepo and memory.UserStore both satisfy it.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error)
	ChangePhone(ctx context.Context, userID, oldPhone, newPhone string) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	OTPRepo     otp.Store
	TokenRepo   token.Store
	SMSSender   sms.Sender
	JWTProvider *jwtinfra.Provider
}
