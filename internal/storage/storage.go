// Package storage defines the narrow persistence contract the relay depends on,
// with PostgreSQL and in-memory implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/miryas-ai/backend/internal/model/chat"
	"github.com/miryas-ai/backend/internal/model/user"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrInterestNotFound = errors.New("interest profile not found")
)

// Admission is the outcome of the atomic daily-quota check.
type Admission struct {
	Allowed bool
	User    user.User
}

type Storage interface {
	// EnsureUser creates the user row if absent and returns the current state.
	// Calling it twice with the same identifier is a no-op.
	EnsureUser(ctx context.Context, userID int64) (user.User, error)
	GetUser(ctx context.Context, userID int64) (user.User, error)

	// AdmitDailyMessage performs the serialized check-then-increment for one
	// message. Premium and pro tiers are admitted without mutation. Free-tier
	// counts reset lazily when the stored interaction date is before today.
	AdmitDailyMessage(ctx context.Context, userID int64, limit int, now time.Time) (Admission, error)

	// AppendTurn durably inserts one turn, assigning its server timestamp.
	AppendTurn(ctx context.Context, turn chat.Turn) (chat.Turn, error)
	// RecentTurns returns up to limit turns for the user, newest first. Every
	// call re-reads current state.
	RecentTurns(ctx context.Context, userID int64, limit int) ([]chat.Turn, error)

	// UpsertInterest replaces the user's interest profile wholesale.
	UpsertInterest(ctx context.Context, profile user.InterestProfile) error
	GetInterest(ctx context.Context, userID int64) (user.InterestProfile, error)

	Ping(ctx context.Context) error
	Close() error
}

// dateOnly truncates t to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
