package otp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestPolicy(t *testing.T) (*Policy, *memory.OTPStore, *fakeClock) {
	t.Helper()
	store := memory.NewOTPStore()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p := NewPolicy(store, DefaultLimits, zap.NewNop()).WithClock(clock.Now)
	return p, store, clock
}

func kindOf(t *testing.T, err error) domain.Kind {
	t.Helper()
	e, ok := domain.AsError(err)
	require.True(t, ok, "expected *domain.Error, got %v", err)
	return e.Kind
}

func TestRequestCode_IssuesSixDigitCode(t *testing.T) {
	p, store, clock := newTestPolicy(t)
	ctx := context.Background()

	issued, err := p.RequestCode(ctx, "9999999999")
	require.NoError(t, err)
	assert.Len(t, issued.Code, 6)
	assert.Regexp(t, `^\d{6}$`, issued.Code)
	assert.Equal(t, clock.Now().Add(10*time.Minute).Unix(), issued.ExpiresAt.Unix())

	rec, err := store.Get(ctx, "9999999999")
	require.NoError(t, err)
	assert.Equal(t, issued.Code, rec.Code)
	assert.Equal(t, 1, rec.Attempts)
}

func TestRequestCode_BlocksAfterMaxIssues(t *testing.T) {
	p, store, clock := newTestPolicy(t)
	ctx := context.Background()
	phone := "9999999999"

	for i := 0; i < 3; i++ {
		_, err := p.RequestCode(ctx, phone)
		require.NoError(t, err, "request %d", i+1)
	}

	_, err := p.RequestCode(ctx, phone)
	require.Error(t, err)
	e, _ := domain.AsError(err)
	assert.Equal(t, domain.KindRateLimited, e.Kind)
	assert.Equal(t, http.StatusTooManyRequests, e.Status)
	assert.Equal(t, 10, e.RetryAfterMinutes)
	assert.Equal(t, "Too many attempts. Try again in 10 minutes.", e.Message)

	rec, err := store.Get(ctx, phone)
	require.NoError(t, err)
	assert.True(t, rec.IsBlocked)

	// Still blocked part-way through the window.
	clock.Advance(4 * time.Minute)
	_, err = p.RequestCode(ctx, phone)
	e, _ = domain.AsError(err)
	require.NotNil(t, e)
	assert.Equal(t, domain.KindRateLimited, e.Kind)
	assert.Equal(t, 6, e.RetryAfterMinutes)
	assert.Equal(t, "Too many attempts. Please try again after 6 minutes.", e.Message)

	// Block elapsed: attempts reset and a fresh code is issued.
	clock.Advance(6 * time.Minute)
	issued, err := p.RequestCode(ctx, phone)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Code)

	rec, err = store.Get(ctx, phone)
	require.NoError(t, err)
	assert.False(t, rec.IsBlocked)
	assert.Equal(t, 1, rec.Attempts)
}

func TestRequestCode_GenerationFailure(t *testing.T) {
	p, _, _ := newTestPolicy(t)
	p.WithRandom(errReader{})

	_, err := p.RequestCode(context.Background(), "9999999999")
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, kindOf(t, err))
}

func TestRequestCode_ConcurrentRequestsNeverExceedLimit(t *testing.T) {
	p, store, _ := newTestPolicy(t)
	ctx := context.Background()
	phone := "8888888888"

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.RequestCode(ctx, phone); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, success, 3)
	rec, err := store.Get(ctx, phone)
	require.NoError(t, err)
	assert.LessOrEqual(t, rec.Attempts, 3)
}

func TestVerifyCode_SingleUse(t *testing.T) {
	p, _, _ := newTestPolicy(t)
	ctx := context.Background()

	issued, err := p.RequestCode(ctx, "9999999999")
	require.NoError(t, err)

	require.NoError(t, p.VerifyCode(ctx, "9999999999", issued.Code))

	err = p.VerifyCode(ctx, "9999999999", issued.Code)
	require.Error(t, err)
	e, _ := domain.AsError(err)
	assert.Equal(t, domain.KindNotFound, e.Kind)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, "OTP record does not exist", e.Message)
}

func TestVerifyCode_Expired(t *testing.T) {
	p, _, clock := newTestPolicy(t)
	ctx := context.Background()

	issued, err := p.RequestCode(ctx, "9999999999")
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	err = p.VerifyCode(ctx, "9999999999", issued.Code)
	assert.Equal(t, domain.KindExpired, kindOf(t, err))

	err = p.VerifyCode(ctx, "9999999999", issued.Code)
	assert.Equal(t, domain.KindNotFound, kindOf(t, err))
}

func TestVerifyCode_WrongCodeKeepsChallenge(t *testing.T) {
	p, _, _ := newTestPolicy(t)
	ctx := context.Background()

	issued, err := p.RequestCode(ctx, "9999999999")
	require.NoError(t, err)

	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	err = p.VerifyCode(ctx, "9999999999", wrong)
	assert.Equal(t, domain.KindInvalid, kindOf(t, err))

	assert.NoError(t, p.VerifyCode(ctx, "9999999999", issued.Code))
}

func TestVerifyCode_UnknownPhone(t *testing.T) {
	p, _, _ := newTestPolicy(t)
	err := p.VerifyCode(context.Background(), "1234567890", "123456")
	assert.Equal(t, domain.KindNotFound, kindOf(t, err))
}

func TestVerifyCode_RecordWithoutCode(t *testing.T) {
	p, store, clock := newTestPolicy(t)
	store.Put(domain.OTPRecord{PhoneNumber: "9999999999", CreatedAt: clock.Now().Unix()})

	err := p.VerifyCode(context.Background(), "9999999999", "")
	assert.Equal(t, domain.KindNotFound, kindOf(t, err))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****9999", mask("9999999999"))
	assert.Equal(t, "****", mask("123"))
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }
