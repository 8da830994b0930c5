package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gigmarket-api/internal/domain"
)

// OTPStore keeps OTP records in memory. Conditions mirror the DynamoDB
// condition expressions of dynamo.OTPRepo so both behave the same under races.
type OTPStore struct {
	mu      sync.Mutex
	records map[string]*domain.OTPRecord
}

func NewOTPStore() *OTPStore {
	return &OTPStore{records: make(map[string]*domain.OTPRecord)}
}

func (s *OTPStore) FindOrCreate(_ context.Context, phone string, now int64) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok {
		rec = &domain.OTPRecord{PhoneNumber: phone, CreatedAt: now}
		s.records[phone] = rec
	}
	cp := *rec
	return &cp, nil
}

func (s *OTPStore) Unblock(_ context.Context, phone string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok || !rec.IsBlocked || rec.BlockedUntil > now {
		return fmt.Errorf("unblock %s: %w", phone, domain.ErrConflict)
	}
	rec.IsBlocked = false
	rec.BlockedUntil = 0
	rec.Attempts = 0
	return nil
}

func (s *OTPStore) Block(_ context.Context, phone string, until int64, maxIssues int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok || rec.IsBlocked || rec.Attempts < maxIssues {
		return fmt.Errorf("block %s: %w", phone, domain.ErrConflict)
	}
	rec.IsBlocked = true
	rec.BlockedUntil = until
	return nil
}

func (s *OTPStore) Issue(_ context.Context, phone, code string, expiresAt int64, maxIssues int) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok || rec.IsBlocked || rec.Attempts >= maxIssues {
		return nil, fmt.Errorf("issue %s: %w", phone, domain.ErrConflict)
	}
	rec.Code = code
	rec.ExpiresAt = expiresAt
	rec.Attempts++
	cp := *rec
	return &cp, nil
}

func (s *OTPStore) Get(_ context.Context, phone string) (*domain.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok {
		return nil, fmt.Errorf("otp %s: %w", phone, domain.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *OTPStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, phone)
	return nil
}

func (s *OTPStore) Consume(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok {
		return fmt.Errorf("otp %s: %w", phone, domain.ErrNotFound)
	}
	if rec.Code != code {
		return fmt.Errorf("consume %s: %w", phone, domain.ErrConflict)
	}
	delete(s.records, phone)
	return nil
}

// Put overwrites a record. Test helper for seeding state.
func (s *OTPStore) Put(rec domain.OTPRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.PhoneNumber] = &rec
}
