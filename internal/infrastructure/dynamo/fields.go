package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
const (
	fieldUserID            = "user_id"
	fieldPhoneNumber       = "phone_number"
	fieldOwnerID           = "owner_id"
	fieldName              = "name"
	fieldEmail             = "email"
	fieldAddress           = "address"
	fieldCity              = "city"
	fieldState             = "state"
	fieldZip               = "zip"
	fieldCountry           = "country"
	fieldStatus            = "status"
	fieldRole              = "role"
	fieldPasswordChangedAt = "password_changed_at"
	fieldUpdatedAt         = "updated_at"

	fieldCode         = "code"
	fieldExpiresAt    = "expires_at"
	fieldAttempts     = "attempts"
	fieldIsBlocked    = "is_blocked"
	fieldBlockedUntil = "blocked_until"
	fieldCreatedAt    = "created_at"
	fieldTTL          = "ttl"

	fieldToken       = "token"
	fieldBlacklisted = "blacklisted"
)
