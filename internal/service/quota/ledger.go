// Package quota decides whether a message spends a free-tier slot.
package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/model/user"
	"github.com/miryas-ai/backend/internal/storage"
)

// DefaultDailyLimit is the number of free-tier messages admitted per calendar day.
const DefaultDailyLimit = 5

const denyReason = "daily free limit reached"

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	Reason  string
	User    user.User
}

// Ledger gates free-tier traffic against the persisted daily counters. The
// check-then-increment itself runs inside the storage layer so that concurrent
// requests for the same user serialize on the row, not on this process.
type Ledger struct {
	store  storage.Storage
	limit  int
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(store storage.Storage, limit int, logger *zap.Logger) *Ledger {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Ledger{store: store, limit: limit, logger: logger, now: time.Now}
}

// Admit checks and, for free-tier users, spends one daily message slot. The
// slot stays spent even if the message later fails upstream. Day rollover is
// lazy: the count resets at the first check of a new day, not by a scheduler.
func (l *Ledger) Admit(ctx context.Context, userID int64) (Decision, error) {
	adm, err := l.store.AdmitDailyMessage(ctx, userID, l.limit, l.now())
	if err != nil {
		return Decision{}, err
	}
	if !adm.Allowed {
		l.logger.Info("quota denied",
			zap.Int64("user_id", userID),
			zap.Int("daily_message_count", adm.User.DailyMessageCount))
		return Decision{Allowed: false, Reason: denyReason, User: adm.User}, nil
	}
	return Decision{Allowed: true, User: adm.User}, nil
}
