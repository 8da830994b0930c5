package domain

// OTPRecord is the single OTP challenge kept per phone number.
// Timestamps are Unix seconds; zero means unset.
type OTPRecord struct {
	PhoneNumber  string `json:"phoneNumber" dynamodbav:"phone_number"`
	Code         string `json:"-" dynamodbav:"code,omitempty"`
	ExpiresAt    int64  `json:"expiresAt" dynamodbav:"expires_at,omitempty"`
	Attempts     int    `json:"attempts" dynamodbav:"attempts"`
	IsBlocked    bool   `json:"isBlocked" dynamodbav:"is_blocked"`
	BlockedUntil int64  `json:"blockedUntil,omitempty" dynamodbav:"blocked_until,omitempty"`
	CreatedAt    int64  `json:"createdAt" dynamodbav:"created_at"`
}

// HasCode reports whether a challenge has been issued and not yet consumed.
func (r *OTPRecord) HasCode() bool { return r.Code != "" }

// SendOTPRequest is the body of POST /auth/send-otp.
type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,max=20"`
}

// VerifyOTPRequest is the body of POST /auth/verify-otp.
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,max=20"`
	OTP         string `json:"otp" validate:"required"`
}
