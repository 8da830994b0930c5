package user

import (
	"context"
	"errors"
	"time"

	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/pkg/id"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
	UpdateRole(ctx context.Context, userID, role string) (*domain.User, error)
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error)
	// ChangePhone moves the user to newPhone; domain.ErrConflict when newPhone
	// is taken or the user no longer holds oldPhone.
	ChangePhone(ctx context.Context, userID, oldPhone, newPhone string) error
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
}

type service struct {
	repo userStore
	now  func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo, now: time.Now}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, domain.NewError(domain.KindBadRequest, "Invalid user id")
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return u, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	patch := domain.UserPatch{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
		Country: req.Country,
		Status:  req.Status,
	}
	if patch.Empty() {
		return nil, domain.NewError(domain.KindBadRequest, "No fields to update")
	}
	u, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return u, nil
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	users, next, err := s.repo.List(ctx, int32(limit), cursor)
	if err != nil {
		if errors.Is(err, domain.ErrBadCursor) {
			return nil, "", domain.NewError(domain.KindBadRequest, "Invalid cursor")
		}
		return nil, "", domain.WrapError(domain.KindInternal, "Something went wrong while listing users", err)
	}
	return users, next, nil
}

// UpdateRole changes a user's role and invalidates every access token
// issued before the change.
func (s *service) UpdateRole(ctx context.Context, userID, role string) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, domain.NewError(domain.KindBadRequest, "Invalid user id")
	}
	if !domain.ValidRole(role) {
		return nil, domain.NewError(domain.KindBadRequest, "Invalid role")
	}
	changed := s.revocationTime()
	u, err := s.repo.Update(ctx, userID, domain.UserPatch{Role: &role, PasswordChangedAt: &changed})
	if err != nil {
		return nil, notFoundOr(err)
	}
	return u, nil
}

// revocationTime is the PasswordChangedAt stamp that revokes every token issued
// so far. iat has second precision; tokens minted in the current second are revoked too.
func (s *service) revocationTime() time.Time {
	return s.now().UTC().Truncate(time.Second).Add(time.Second)
}

func (s *service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	now := s.now().UTC()
	u := &domain.User{
		UserID:      id.New(),
		PhoneNumber: req.PhoneNumber,
		Status:      req.Status,
		Role:        req.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	domain.UserPatch{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
		Country: req.Country,
	}.Apply(u)

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, phoneTaken()
		}
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while creating the user", err)
	}
	return u, nil
}

// Update applies an administrative edit. A role change revokes the user's
// tokens the same way UpdateRole does.
func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	if !id.Valid(userID) {
		return nil, domain.NewError(domain.KindBadRequest, "Invalid user id")
	}
	cur, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err)
	}

	patch := domain.UserPatch{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
		Country: req.Country,
		Status:  req.Status,
	}
	if req.Role != nil && *req.Role != cur.Role {
		changed := s.revocationTime()
		patch.Role = req.Role
		patch.PasswordChangedAt = &changed
	}
	movePhone := req.PhoneNumber != nil && *req.PhoneNumber != cur.PhoneNumber
	if patch.Empty() && !movePhone {
		if req.PhoneNumber == nil && req.Role == nil {
			return nil, domain.NewError(domain.KindBadRequest, "No fields to update")
		}
		return cur, nil
	}

	if movePhone {
		if err := s.changePhone(ctx, userID, cur.PhoneNumber, *req.PhoneNumber); err != nil {
			return nil, err
		}
	}
	if patch.Empty() {
		u, err := s.repo.Get(ctx, userID)
		if err != nil {
			return nil, notFoundOr(err)
		}
		return u, nil
	}
	u, err := s.repo.Update(ctx, userID, patch)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return u, nil
}

func (s *service) changePhone(ctx context.Context, userID, oldPhone, newPhone string) error {
	err := s.repo.ChangePhone(ctx, userID, oldPhone, newPhone)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return domain.WrapError(domain.KindInternal, "Something went wrong while updating the user", err)
	}
	owner, lookupErr := s.repo.GetByPhone(ctx, newPhone)
	switch {
	case lookupErr == nil && owner.UserID != userID:
		return phoneTaken()
	case lookupErr == nil:
		return nil
	default:
		return domain.NewError(domain.KindUnavailable, "User was modified concurrently, please retry")
	}
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if !id.Valid(userID) {
		return domain.NewError(domain.KindBadRequest, "Invalid user id")
	}
	err := s.repo.Delete(ctx, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.NewError(domain.KindNotFound, "User not found")
	case errors.Is(err, domain.ErrConflict):
		return domain.NewError(domain.KindUnavailable, "User was modified concurrently, please retry")
	default:
		return domain.WrapError(domain.KindInternal, "Something went wrong while deleting the user", err)
	}
}

func phoneTaken() *domain.Error {
	return domain.NewError(domain.KindBadRequest, "Phone number already exists")
}

func notFoundOr(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.KindNotFound, "User not found")
	}
	return domain.WrapError(domain.KindInternal, "Something went wrong while accessing the user", err)
}
