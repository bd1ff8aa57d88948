package referrals

import "time"

// @Enum pending, rewarded
type Status string

const (
	StatusPending  Status = "pending"
	StatusRewarded Status = "rewarded"
)

type Referral struct {
	ID         string
	ReferrerID string
	ReferredID string
	Code       string
	Status     Status

	RewardCents int64

	CreatedAt  time.Time
	RewardedAt *time.Time
}

type Summary struct {
	Code             string
	Referrals        []Referral
	Pending          int
	Rewarded         int
	TotalRewardCents int64
}
