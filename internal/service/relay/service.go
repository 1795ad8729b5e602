// Package relay composes the quota ledger, the upstream client and the
// conversation store into the message send pipeline.
package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/model/chat"
	"github.com/miryas-ai/backend/internal/model/user"
	"github.com/miryas-ai/backend/internal/service/quota"
	"github.com/miryas-ai/backend/internal/storage"
)

// DefaultHistoryLimit bounds history reads when the caller does not specify one.
const DefaultHistoryLimit = 20

const limitNotice = "Free limit reached, upgrade to Premium"

// Generator is the upstream text-generation contract the relay depends on.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Reply is the outcome of a send: either generated text or a quota denial.
type Reply struct {
	Text    string
	Limited bool
	Notice  string
}

// Service orchestrates one message relay: quota check, upstream call,
// conversation persistence.
type Service struct {
	store  storage.Storage
	llm    Generator
	ledger *quota.Ledger
	prompt *SystemPrompt
	logger *zap.Logger
}

func NewService(store storage.Storage, llm Generator, ledger *quota.Ledger, prompt *SystemPrompt, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		llm:    llm,
		ledger: ledger,
		prompt: prompt,
		logger: logger,
	}
}

// InitUser creates the user record if absent and returns the current state.
func (s *Service) InitUser(ctx context.Context, userID int64) (user.User, error) {
	return s.store.EnsureUser(ctx, userID)
}

// UserState returns the persisted tier and quota snapshot.
func (s *Service) UserState(ctx context.Context, userID int64) (user.User, error) {
	return s.store.GetUser(ctx, userID)
}

// Send relays one user message upstream and persists both turns. A quota
// denial is reported in the Reply, not as an error, and persists nothing.
func (s *Service) Send(ctx context.Context, userID int64, message string) (Reply, error) {
	if _, err := s.store.EnsureUser(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("ensuring user: %w", err)
	}

	decision, err := s.ledger.Admit(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("checking quota: %w", err)
	}
	if !decision.Allowed {
		return Reply{Limited: true, Notice: limitNotice}, nil
	}

	// The user turn is persisted before the upstream call so a failure past
	// this point cannot lose it. If the upstream call then fails, the turn
	// stays stored without a paired assistant turn and the quota slot stays
	// spent; neither is rolled back.
	if _, err := s.store.AppendTurn(ctx, chat.Turn{
		ID:      uuid.NewString(),
		UserID:  userID,
		Role:    chat.RoleUser,
		Content: message,
	}); err != nil {
		return Reply{}, fmt.Errorf("persisting user turn: %w", err)
	}

	replyText, err := s.llm.Generate(ctx, s.prompt.Render(), message)
	if err != nil {
		s.logger.Error("upstream generation failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return Reply{}, err
	}

	if _, err := s.store.AppendTurn(ctx, chat.Turn{
		ID:      uuid.NewString(),
		UserID:  userID,
		Role:    chat.RoleAssistant,
		Content: replyText,
	}); err != nil {
		return Reply{}, fmt.Errorf("persisting assistant turn: %w", err)
	}

	return Reply{Text: replyText}, nil
}

// History returns up to limit most recent turns, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]chat.Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.RecentTurns(ctx, userID, limit)
}

// SetInterest replaces the user's interest profile wholesale.
func (s *Service) SetInterest(ctx context.Context, userID int64, current string, tags []string) error {
	return s.store.UpsertInterest(ctx, user.InterestProfile{
		UserID:          userID,
		CurrentInterest: current,
		Tags:            tags,
	})
}

// Interest returns the stored profile; callers map storage.ErrInterestNotFound
// to an empty result.
func (s *Service) Interest(ctx context.Context, userID int64) (user.InterestProfile, error) {
	return s.store.GetInterest(ctx, userID)
}

// Healthy reports storage reachability.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}
