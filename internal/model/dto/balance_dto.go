package dto

// BalanceInfo 余额信息
type BalanceInfo struct {
	StoryCredits          int    `json:"story_credits"`
	CartoonCredits        int    `json:"cartoon_credits"`
	IsAdmin               bool   `json:"is_admin"`
	SubscriptionType      string `json:"subscription_type,omitempty"`
	SubscriptionUntil     string `json:"subscription_until,omitempty"`
	HasActiveSubscription bool   `json:"has_active_subscription"`
	IsFreeTrial           bool   `json:"is_free_trial"`
	FreeTrialExpired      bool   `json:"free_trial_expired"`
	FreeTrialStoriesUsed  int    `json:"free_trial_stories_used"`
}
