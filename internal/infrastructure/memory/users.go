package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gigmarket-api/internal/domain"
)

// UserStore keeps users in memory with a unique phone index.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	byPhone map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]*domain.User),
		byPhone: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPhone[u.PhoneNumber]; taken {
		return fmt.Errorf("phone %s: %w", u.PhoneNumber, domain.ErrConflict)
	}
	if _, taken := s.users[u.UserID]; taken {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrConflict)
	}
	cp := *u
	s.users[u.UserID] = &cp
	s.byPhone[u.PhoneNumber] = u.UserID
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	s.mu.RLock()
	userID, ok := s.byPhone[phone]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user with phone %s: %w", phone, domain.ErrNotFound)
	}
	return s.Get(ctx, userID)
}

func (s *UserStore) Update(_ context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	patch.Apply(u)
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *UserStore) ChangePhone(_ context.Context, userID, oldPhone, newPhone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.PhoneNumber != oldPhone {
		return fmt.Errorf("user %s no longer holds %s: %w", userID, oldPhone, domain.ErrConflict)
	}
	if _, taken := s.byPhone[newPhone]; taken {
		return fmt.Errorf("phone %s: %w", newPhone, domain.ErrConflict)
	}
	delete(s.byPhone, oldPhone)
	s.byPhone[newPhone] = userID
	u.PhoneNumber = newPhone
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the user and frees its phone number.
func (s *UserStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	delete(s.byPhone, u.PhoneNumber)
	delete(s.users, userID)
	return nil
}

// List pages through users ordered by id. cursor is the last id of the previous page.
func (s *UserStore) List(_ context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	next := ""
	if limit > 0 && len(ids) > int(limit) {
		ids = ids[:limit]
		next = ids[len(ids)-1]
	}
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.users[id])
	}
	return out, next, nil
}
