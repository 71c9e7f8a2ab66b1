package model

import (
	"time"
)

// 订阅类型
const (
	SubscriptionFreeTrial = "free_trial"
	SubscriptionMonthly   = "monthly"
	SubscriptionYearly    = "yearly"
)

type User struct {
	ID                     int64      `gorm:"primaryKey" json:"id"`
	Username               string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email                  *string    `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash           *string    `gorm:"size:255" json:"-"`
	AvatarURL              string     `gorm:"size:500" json:"avatar_url"`
	GoogleID               *string    `gorm:"column:google_id;size:100;uniqueIndex" json:"-"`
	StoryCredits           int        `gorm:"default:0" json:"story_credits"`
	CartoonCredits         int        `gorm:"default:0" json:"cartoon_credits"`
	CartoonCreditsExpireAt *time.Time `json:"cartoon_credits_expire_at,omitempty"`
	SubscriptionType       *string    `gorm:"size:20" json:"subscription_type,omitempty"` // free_trial, monthly, yearly
	SubscriptionUntil      *time.Time `json:"subscription_until,omitempty"`
	FreeTrialStoriesUsed   int        `gorm:"default:0" json:"free_trial_stories_used"`
	IsAdmin                bool       `gorm:"default:false" json:"is_admin"`
	EmailVerified          bool       `gorm:"default:false" json:"email_verified"`
	VerificationCode       *string    `gorm:"size:100" json:"-"`
	VerificationExpiresAt  *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// HasActiveSubscription 订阅是否有效（subscription_until 在未来）
func (u *User) HasActiveSubscription() bool {
	return u.SubscriptionUntil != nil && u.SubscriptionUntil.After(time.Now())
}

// IsFreeTrial 是否为试用订阅
func (u *User) IsFreeTrial() bool {
	return u.SubscriptionType != nil && *u.SubscriptionType == SubscriptionFreeTrial
}
