package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miryas-ai/backend/internal/model/chat"
	"github.com/miryas-ai/backend/internal/model/user"
)

func TestEnsureUserIdempotent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	first, err := s.EnsureUser(ctx, 25337)
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if first.Tier != user.TierFree || !first.AllowContinue || first.DailyMessageCount != 0 {
		t.Fatalf("unexpected defaults: %+v", first)
	}

	second, err := s.EnsureUser(ctx, 25337)
	if err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	if second != first {
		t.Fatalf("second EnsureUser returned %+v, want %+v", second, first)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := NewMemoryStorage()
	if _, err := s.GetUser(context.Background(), 1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestAdmitUnknownUser(t *testing.T) {
	s := NewMemoryStorage()
	if _, err := s.AdmitDailyMessage(context.Background(), 1, 5, time.Now()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestRecentTurnsNewestFirst(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		if _, err := s.AppendTurn(ctx, chat.Turn{ID: c, UserID: 1, Role: role, Content: c}); err != nil {
			t.Fatalf("AppendTurn %q: %v", c, err)
		}
	}

	turns, err := s.RecentTurns(ctx, 1, 3)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len = %d, want 3", len(turns))
	}
	for i, want := range []string{"five", "four", "three"} {
		if turns[i].Content != want {
			t.Fatalf("turns[%d] = %q, want %q", i, turns[i].Content, want)
		}
	}
	if !turns[0].CreatedAt.After(turns[1].CreatedAt) || !turns[1].CreatedAt.After(turns[2].CreatedAt) {
		t.Fatal("timestamps are not strictly decreasing")
	}
}

func TestRecentTurnsIsolatedPerUser(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	s.AppendTurn(ctx, chat.Turn{ID: "a", UserID: 1, Role: chat.RoleUser, Content: "mine"})
	s.AppendTurn(ctx, chat.Turn{ID: "b", UserID: 2, Role: chat.RoleUser, Content: "theirs"})

	turns, err := s.RecentTurns(ctx, 1, 20)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "mine" {
		t.Fatalf("turns = %+v, want only the user's own turn", turns)
	}
}

func TestInterestReplacedWholesale(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	if _, err := s.GetInterest(ctx, 1); !errors.Is(err, ErrInterestNotFound) {
		t.Fatalf("err = %v, want ErrInterestNotFound", err)
	}

	s.UpsertInterest(ctx, user.InterestProfile{UserID: 1, CurrentInterest: "chess", Tags: []string{"games", "strategy"}})
	s.UpsertInterest(ctx, user.InterestProfile{UserID: 1, CurrentInterest: "cooking", Tags: []string{"food"}})

	p, err := s.GetInterest(ctx, 1)
	if err != nil {
		t.Fatalf("GetInterest: %v", err)
	}
	if p.CurrentInterest != "cooking" {
		t.Fatalf("interest = %q, want %q", p.CurrentInterest, "cooking")
	}
	if len(p.Tags) != 1 || p.Tags[0] != "food" {
		t.Fatalf("tags = %v, want [food] (old tags must not survive)", p.Tags)
	}
	if p.LastUpdated.IsZero() {
		t.Fatal("LastUpdated not stamped")
	}
}
