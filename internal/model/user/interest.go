package user

import "time"

// InterestProfile stores the latest declared interest per user. Writes replace
// the whole profile, tags included; there is no merge.
type InterestProfile struct {
	UserID          int64     `json:"user_id"`
	CurrentInterest string    `json:"current_interest"`
	Tags            []string  `json:"interest_tags"`
	LastUpdated     time.Time `json:"last_updated"`
}
