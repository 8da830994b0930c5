package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gigmarket-api/internal/domain"
)

// TokenStore keeps one refresh-token record per user.
type TokenStore struct {
	mu      sync.Mutex
	records map[string]*domain.TokenRecord
}

func NewTokenStore() *TokenStore {
	return &TokenStore{records: make(map[string]*domain.TokenRecord)}
}

func (s *TokenStore) Upsert(_ context.Context, rec *domain.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.UserID] = &cp
	return nil
}

func (s *TokenStore) GetByUser(_ context.Context, userID string) (*domain.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("token record %s: %w", userID, domain.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *TokenStore) Replace(_ context.Context, rec *domain.TokenRecord, oldToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[rec.UserID]
	if !ok || !cur.Holds(oldToken) || cur.Blacklisted {
		return fmt.Errorf("replace token of %s: %w", rec.UserID, domain.ErrConflict)
	}
	cp := *rec
	s.records[rec.UserID] = &cp
	return nil
}

func (s *TokenStore) Blacklist(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[userID]
	if !ok || !cur.Holds(token) {
		return fmt.Errorf("token record %s: %w", userID, domain.ErrNotFound)
	}
	cur.Blacklisted = true
	return nil
}
