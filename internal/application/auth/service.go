package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gigmarket-api/internal/application/otp"
	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/infrastructure/sms"
	"github.com/gigmarket-api/internal/pkg/id"
	"go.uber.org/zap"
)

// VerifyResult is returned to a client whose code was accepted.
type VerifyResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Role         string `json:"role"`
	IsNewUser    bool   `json:"isNewUser"`
}

type Service interface {
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*VerifyResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken, userID string) error
}

// OTPPolicy is implemented by *otp.Policy.
type OTPPolicy interface {
	RequestCode(ctx context.Context, phone string) (*otp.Issued, error)
	VerifyCode(ctx context.Context, phone, submitted string) error
}

// TokenIssuer is implemented by *token.Issuer.
type TokenIssuer interface {
	IssuePair(ctx context.Context, userID, role string) (*domain.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Revoke(ctx context.Context, refreshToken, userID string) error
}

type UserStore interface {
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

// ServiceDeps groups the collaborators of the auth service.
type ServiceDeps struct {
	OTP       OTPPolicy
	Tokens    TokenIssuer
	UserRepo  UserStore
	SMSSender sms.Sender
	Log       *zap.Logger

	// DeliveryTimeout bounds a single SMS send.
	DeliveryTimeout time.Duration
	// DeliveryRequired turns a failed send into a 503 instead of a logged warning.
	DeliveryRequired bool
}

type service struct {
	otp              OTPPolicy
	tokens           TokenIssuer
	userRepo         UserStore
	smsSender        sms.Sender
	log              *zap.Logger
	deliveryTimeout  time.Duration
	deliveryRequired bool
}

func NewService(deps ServiceDeps) Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		otp:              deps.OTP,
		tokens:           deps.Tokens,
		userRepo:         deps.UserRepo,
		smsSender:        deps.SMSSender,
		log:              log.With(zap.String("service", "auth")),
		deliveryTimeout:  deps.DeliveryTimeout,
		deliveryRequired: deps.DeliveryRequired,
	}
}

func (s *service) SendOTP(ctx context.Context, phone string) error {
	issued, err := s.otp.RequestCode(ctx, phone)
	if err != nil {
		return err
	}

	sendCtx := ctx
	if s.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.deliveryTimeout)
		defer cancel()
	}
	if err := s.smsSender.SendSMS(sendCtx, phone, sms.OTPMessage(issued.Code)); err != nil {
		if s.deliveryRequired {
			return domain.WrapError(domain.KindUnavailable, "Failed to deliver the OTP, please retry", err)
		}
		s.log.Warn("OTP delivery failed", zap.Error(err))
	}
	return nil
}

func (s *service) VerifyOTP(ctx context.Context, phone, code string) (*VerifyResult, error) {
	if err := s.otp.VerifyCode(ctx, phone, code); err != nil {
		return nil, err
	}

	u, isNew, err := s.findOrCreateUser(ctx, phone)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, u.UserID, u.Role)
	if err != nil {
		return nil, err
	}
	if isNew {
		s.log.Info("user registered", zap.String("user", u.UserID))
	}
	return &VerifyResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Role:         u.Role,
		IsNewUser:    isNew,
	}, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}

func (s *service) Logout(ctx context.Context, refreshToken, userID string) error {
	return s.tokens.Revoke(ctx, refreshToken, userID)
}

// findOrCreateUser returns the user owning phone, creating a customer when
// none exists. A concurrent creation for the same phone resolves to the
// winner's record.
func (s *service) findOrCreateUser(ctx context.Context, phone string) (*domain.User, bool, error) {
	u, err := s.userRepo.GetByPhone(ctx, phone)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, domain.WrapError(domain.KindInternal, "Something went wrong while loading the user", err)
	}

	now := time.Now().UTC()
	u = &domain.User{
		UserID:      id.New(),
		PhoneNumber: phone,
		Role:        domain.RoleCustomer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.userRepo.Create(ctx, u)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, false, domain.WrapError(domain.KindInternal, "Something went wrong while creating the user", err)
	}

	existing, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, false, domain.WrapError(domain.KindInternal, "Something went wrong while loading the user", err)
	}
	return existing, false, nil
}
