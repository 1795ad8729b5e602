package storage

import (
	"context"
	"sync"
	"time"

	"github.com/miryas-ai/backend/internal/model/chat"
	"github.com/miryas-ai/backend/internal/model/user"
)

// MemoryStorage keeps all relay state in process memory. Suitable for
// development and tests; the storage mutex serializes admission checks the way
// the row lock does in PostgreSQL.
type MemoryStorage struct {
	mu        sync.RWMutex
	users     map[int64]user.User
	turns     map[int64][]chat.Turn
	interests map[int64]user.InterestProfile
	lastStamp time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:     make(map[int64]user.User),
		turns:     make(map[int64][]chat.Turn),
		interests: make(map[int64]user.InterestProfile),
	}
}

func (s *MemoryStorage) EnsureUser(_ context.Context, userID int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	u := user.User{ID: userID, Tier: user.TierFree, AllowContinue: true}
	s.users[userID] = u
	return u, nil
}

// SeedUser overwrites a user record directly. Intended for tests and dev fixtures.
func (s *MemoryStorage) SeedUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *MemoryStorage) GetUser(_ context.Context, userID int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStorage) AdmitDailyMessage(_ context.Context, userID int64, limit int, now time.Time) (Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return Admission{}, ErrUserNotFound
	}

	if u.Tier.Unlimited() {
		return Admission{Allowed: true, User: u}, nil
	}

	today := dateOnly(now)
	effective := u.DailyMessageCount
	if u.LastInteractionDate == nil || u.LastInteractionDate.Before(today) {
		effective = 0
	}
	if effective >= limit {
		u.DailyMessageCount = effective
		return Admission{Allowed: false, User: u}, nil
	}

	u.DailyMessageCount = effective + 1
	u.LastInteractionDate = &today
	s.users[userID] = u
	return Admission{Allowed: true, User: u}, nil
}

func (s *MemoryStorage) AppendTurn(_ context.Context, turn chat.Turn) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep insertion timestamps strictly increasing so retrieval order is stable.
	stamp := time.Now().UTC()
	if !stamp.After(s.lastStamp) {
		stamp = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = stamp

	turn.CreatedAt = stamp
	s.turns[turn.UserID] = append(s.turns[turn.UserID], turn)
	return turn, nil
}

func (s *MemoryStorage) RecentTurns(_ context.Context, userID int64, limit int) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[userID]
	if limit > len(all) {
		limit = len(all)
	}

	turns := make([]chat.Turn, 0, limit)
	for i := len(all) - 1; i >= 0 && len(turns) < limit; i-- {
		turns = append(turns, all[i])
	}
	return turns, nil
}

func (s *MemoryStorage) UpsertInterest(_ context.Context, profile user.InterestProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.LastUpdated = time.Now().UTC()
	s.interests[profile.UserID] = profile
	return nil
}

func (s *MemoryStorage) GetInterest(_ context.Context, userID int64) (user.InterestProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.interests[userID]
	if !ok {
		return user.InterestProfile{}, ErrInterestNotFound
	}
	return p, nil
}

func (s *MemoryStorage) Ping(context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }
