package storage

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/tphummel/fit-drive/internal/log"
)

// Ensure MemoryStorage implements required interfaces
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps everything in process memory. Data is lost on restart.
type MemoryStorage struct {
	users      map[string]*User
	usersMutex sync.RWMutex

	usedTokens      map[string]time.Time // token id -> token expiry
	usedTokensMutex sync.Mutex

	now func() time.Time
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:      make(map[string]*User),
		usedTokens: make(map[string]time.Time),
		now:        time.Now,
	}
}

func copyUser(u *User) *User {
	c := *u
	c.Authorizations = maps.Clone(u.Authorizations)
	if c.Authorizations == nil {
		c.Authorizations = make(map[string]AuthorizationRecord)
	}
	return &c
}

func (s *MemoryStorage) FindUser(_ context.Context, email string) (*User, error) {
	s.usersMutex.RLock()
	defer s.usersMutex.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStorage) CreateUser(_ context.Context, email string) (*User, error) {
	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	if u, ok := s.users[email]; ok {
		return copyUser(u), nil
	}

	u := &User{
		Email:          email,
		CreatedAt:      s.now(),
		Authorizations: make(map[string]AuthorizationRecord),
	}
	s.users[email] = u
	return copyUser(u), nil
}

func (s *MemoryStorage) DeleteUser(_ context.Context, email string) error {
	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	if _, ok := s.users[email]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, email)
	return nil
}

func (s *MemoryStorage) SaveAuthorization(_ context.Context, record AuthorizationRecord) error {
	s.usersMutex.Lock()
	defer s.usersMutex.Unlock()

	u, ok := s.users[record.OwnerEmail]
	if !ok {
		return ErrUserNotFound
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.now()
	}
	u.Authorizations[record.Provider] = record
	return nil
}

func (s *MemoryStorage) ConsumeLoginToken(_ context.Context, id string, expiresAt time.Time) (bool, error) {
	s.usedTokensMutex.Lock()
	defer s.usedTokensMutex.Unlock()

	if _, used := s.usedTokens[id]; used {
		return false, nil
	}
	s.usedTokens[id] = expiresAt
	return true, nil
}

func (s *MemoryStorage) CleanupExpiredLoginTokens(_ context.Context) (int, error) {
	s.usedTokensMutex.Lock()
	defer s.usedTokensMutex.Unlock()

	now := s.now()
	removed := 0
	for id, exp := range s.usedTokens {
		if now.After(exp) {
			delete(s.usedTokens, id)
			removed++
		}
	}

	if removed > 0 {
		log.LogDebugWithFields("storage", "Removed expired login token ids", map[string]any{
			"count": removed,
		})
	}
	return removed, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
