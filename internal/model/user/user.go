package user

import "time"

// Tier is the subscription level governing the daily message quota.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Unlimited reports whether the tier bypasses the daily quota.
func (t Tier) Unlimited() bool {
	return t == TierPremium || t == TierPro
}

// User carries the subscription and quota state for a single chat user.
// The daily count is only meaningful relative to LastInteractionDate: a count
// stamped on a prior date reads as zero today.
type User struct {
	ID                     int64      `json:"user_id"`
	Tier                   Tier       `json:"tier"`
	DailyMessageCount      int        `json:"daily_message_count"`
	LastInteractionDate    *time.Time `json:"last_interaction_date,omitempty"`
	SubscriptionExpiryDate *time.Time `json:"subscription_expiry_date,omitempty"`
	AllowContinue          bool       `json:"allow_continue"`
}
