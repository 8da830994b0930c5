package domain

import "time"

// User is a marketplace account identified by its phone number.
type User struct {
	UserID            string     `json:"id" dynamodbav:"user_id"`
	PhoneNumber       string     `json:"phoneNumber" dynamodbav:"phone_number"`
	Name              string     `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Email             string     `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Address           string     `json:"address,omitempty" dynamodbav:"address,omitempty"`
	City              string     `json:"city,omitempty" dynamodbav:"city,omitempty"`
	State             string     `json:"state,omitempty" dynamodbav:"state,omitempty"`
	Zip               string     `json:"zip,omitempty" dynamodbav:"zip,omitempty"`
	Country           string     `json:"country,omitempty" dynamodbav:"country,omitempty"`
	Status            string     `json:"status,omitempty" dynamodbav:"status,omitempty"`
	Role              string     `json:"role" dynamodbav:"role"`
	PasswordChangedAt *time.Time `json:"-" dynamodbav:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

// TokensRevokedAfter reports whether a token issued at iat (Unix seconds)
// predates the user's last credential change.
func (u *User) TokensRevokedAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat
}

// UserPatch carries the optional fields of a user update. Nil fields are left untouched.
type UserPatch struct {
	Name              *string
	Email             *string
	Address           *string
	City              *string
	State             *string
	Zip               *string
	Country           *string
	Status            *string
	Role              *string
	PasswordChangedAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Address == nil && p.City == nil &&
		p.State == nil && p.Zip == nil && p.Country == nil && p.Status == nil &&
		p.Role == nil && p.PasswordChangedAt == nil
}

// Apply copies the non-nil patch fields onto u.
func (p UserPatch) Apply(u *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Name, p.Name)
	set(&u.Email, p.Email)
	set(&u.Address, p.Address)
	set(&u.City, p.City)
	set(&u.State, p.State)
	set(&u.Zip, p.Zip)
	set(&u.Country, p.Country)
	set(&u.Status, p.Status)
	set(&u.Role, p.Role)
	if p.PasswordChangedAt != nil {
		t := *p.PasswordChangedAt
		u.PasswordChangedAt = &t
	}
}

// UpdateProfileRequest is the body of PUT /users/profile.
type UpdateProfileRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address" validate:"omitempty,min=1"`
	City    *string `json:"city" validate:"omitempty,min=1"`
	State   *string `json:"state" validate:"omitempty,min=1"`
	Zip     *string `json:"zip" validate:"omitempty,uszip"`
	Country *string `json:"country" validate:"omitempty,min=1"`
	Status  *string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// Account statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	PhoneNumber string  `json:"phoneNumber" validate:"required,numeric,len=10"`
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Address     *string `json:"address" validate:"omitempty,min=1"`
	City        *string `json:"city" validate:"omitempty,min=1"`
	State       *string `json:"state" validate:"omitempty,min=1"`
	Zip         *string `json:"zip" validate:"omitempty,uszip"`
	Country     *string `json:"country" validate:"omitempty,min=1"`
	Status      string  `json:"status" validate:"omitempty,oneof=active inactive"`
	Role        string  `json:"role" validate:"omitempty,oneof=customer seller admin"`
}

// UpdateUserRequest is the body of PUT /users/{id}.
type UpdateUserRequest struct {
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,numeric,len=10"`
	UpdateProfileRequest
	Role *string `json:"role" validate:"omitempty,oneof=customer seller admin"`
}

// UpdateRoleRequest is the body of PATCH /users/{id}/role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer seller admin"`
}
