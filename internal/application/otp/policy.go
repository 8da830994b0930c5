package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/gigmarket-api/internal/config"
	"github.com/gigmarket-api/internal/domain"
	"go.uber.org/zap"
)

const (
	codeLength = 6
	// maxRounds bounds how often a request re-reads the record after losing a
	// conditional write to a concurrent request for the same phone number.
	maxRounds = 4
)

// Store persists one OTPRecord per phone number. Every mutating call is a
// single atomic conditional write; a failed condition is reported as
// domain.ErrConflict.
type Store interface {
	// FindOrCreate returns the record for phone, inserting an empty one if absent.
	FindOrCreate(ctx context.Context, phone string, now int64) (*domain.OTPRecord, error)
	// Unblock lifts an elapsed block and resets attempts. Requires is_blocked and blocked_until <= now.
	Unblock(ctx context.Context, phone string, now int64) error
	// Block starts a block window. Requires !is_blocked and attempts >= maxIssues.
	Block(ctx context.Context, phone string, until int64, maxIssues int) error
	// Issue stores a new code and increments attempts. Requires !is_blocked and attempts < maxIssues.
	Issue(ctx context.Context, phone, code string, expiresAt int64, maxIssues int) (*domain.OTPRecord, error)
	Get(ctx context.Context, phone string) (*domain.OTPRecord, error)
	Delete(ctx context.Context, phone string) error
	// Consume deletes the record only while it still holds code.
	Consume(ctx context.Context, phone, code string) error
}

// Limits are the abuse-prevention knobs of the policy.
type Limits struct {
	CodeTTL       time.Duration
	MaxIssues     int
	BlockDuration time.Duration
}

// LimitsFromConfig reads Limits from the OTP section of cfg.
func LimitsFromConfig(cfg config.OTPConfig) Limits {
	return Limits{CodeTTL: cfg.CodeTTL, MaxIssues: cfg.MaxIssues, BlockDuration: cfg.BlockDuration}
}

// DefaultLimits: 3 issuances, 10 minute code lifetime, 10 minute block.
var DefaultLimits = Limits{CodeTTL: 10 * time.Minute, MaxIssues: 3, BlockDuration: 10 * time.Minute}

// Issued is a freshly generated code ready for delivery.
type Issued struct {
	PhoneNumber string
	Code        string
	ExpiresAt   time.Time
}

// Policy decides whether a code may be issued and whether a submitted code is valid.
type Policy struct {
	store  Store
	limits Limits
	log    *zap.Logger
	now    func() time.Time
	random io.Reader
}

func NewPolicy(store Store, limits Limits, log *zap.Logger) *Policy {
	return &Policy{
		store:  store,
		limits: limits,
		log:    log.With(zap.String("service", "otp")),
		now:    time.Now,
		random: rand.Reader,
	}
}

// WithClock replaces the time source. Used by tests.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	p.now = now
	return p
}

// WithRandom replaces the entropy source. Used by tests.
func (p *Policy) WithRandom(r io.Reader) *Policy {
	p.random = r
	return p
}

// RequestCode runs the issuance state machine for phone.
func (p *Policy) RequestCode(ctx context.Context, phone string) (*Issued, error) {
	code, err := p.generate()
	if err != nil {
		p.log.Error("OTP generation failed", zap.Error(err))
		return nil, domain.WrapError(domain.KindInternal, "Something went wrong while generating the OTP code", err)
	}

	for round := 0; round < maxRounds; round++ {
		now := p.now()
		rec, err := p.store.FindOrCreate(ctx, phone, now.Unix())
		if err != nil {
			return nil, storeFailure(err)
		}

		d := evaluate(rec, now, p.limits)
		switch d.action {
		case actionRateLimited:
			return nil, domain.RateLimited(
				fmt.Sprintf("Too many attempts. Please try again after %d minutes.", d.remainingMinutes),
				d.remainingMinutes,
			)

		case actionUnblock:
			if err := p.store.Unblock(ctx, phone, now.Unix()); err != nil && !errors.Is(err, domain.ErrConflict) {
				return nil, storeFailure(err)
			}
			// Re-read: the next round sees attempts reset to 0.

		case actionBlock:
			until := now.Add(p.limits.BlockDuration)
			err := p.store.Block(ctx, phone, until.Unix(), p.limits.MaxIssues)
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, storeFailure(err)
			}
			minutes := ceilMinutes(p.limits.BlockDuration)
			p.log.Warn("OTP issuance blocked", zap.String("phone", mask(phone)), zap.Int("minutes", minutes))
			return nil, domain.RateLimited(fmt.Sprintf("Too many attempts. Try again in %d minutes.", minutes), minutes)

		case actionIssue:
			expiresAt := now.Add(p.limits.CodeTTL)
			updated, err := p.store.Issue(ctx, phone, code, expiresAt.Unix(), p.limits.MaxIssues)
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			if err != nil {
				return nil, storeFailure(err)
			}
			p.log.Debug("OTP issued", zap.String("phone", mask(phone)), zap.Int("attempts", updated.Attempts))
			return &Issued{PhoneNumber: phone, Code: code, ExpiresAt: time.Unix(updated.ExpiresAt, 0)}, nil
		}
	}

	p.log.Warn("OTP issuance lost too many races", zap.String("phone", mask(phone)))
	return nil, domain.NewError(domain.KindUnavailable, "OTP service is busy, please retry")
}

// VerifyCode checks submitted against the active challenge and consumes it on success.
func (p *Policy) VerifyCode(ctx context.Context, phone, submitted string) error {
	rec, err := p.store.Get(ctx, phone)
	if errors.Is(err, domain.ErrNotFound) {
		return otpNotFound()
	}
	if err != nil {
		return storeFailure(err)
	}
	if !rec.HasCode() {
		return otpNotFound()
	}

	if p.now().Unix() > rec.ExpiresAt {
		if err := p.store.Delete(ctx, phone); err != nil {
			p.log.Warn("failed to delete expired OTP record", zap.String("phone", mask(phone)), zap.Error(err))
		}
		return domain.NewError(domain.KindExpired, "OTP has expired")
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(submitted)) != 1 {
		return domain.NewError(domain.KindInvalid, "Invalid OTP")
	}

	if err := p.store.Consume(ctx, phone, rec.Code); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			return otpNotFound()
		}
		return storeFailure(err)
	}
	return nil
}

func (p *Policy) generate() (string, error) {
	n, err := rand.Int(p.random, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%0*d", codeLength, n.Int64())
	if len(code) != codeLength {
		return "", fmt.Errorf("generated code has %d digits", len(code))
	}
	return code, nil
}

func otpNotFound() *domain.Error {
	return domain.NewError(domain.KindNotFound, "OTP record does not exist").WithStatus(http.StatusBadRequest)
}

func storeFailure(err error) *domain.Error {
	return domain.WrapError(domain.KindUnavailable, "OTP store unavailable", err)
}

// mask keeps the last four digits of a phone number for logs.
func mask(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
