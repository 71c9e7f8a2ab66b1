package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/internal/model"
)

// TestUser 创建测试用户，默认带少量星星和有效的试用订阅
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("test_%d@example.com", time.Now().UnixNano())
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	subType := model.SubscriptionFreeTrial
	until := time.Now().Add(7 * 24 * time.Hour)
	user := &model.User{
		Username:          fmt.Sprintf("testuser_%d", time.Now().UnixNano()%100000),
		Email:             &email,
		PasswordHash:      &passwordHash,
		StoryCredits:      10,
		SubscriptionType:  &subType,
		SubscriptionUntil: &until,
		EmailVerified:     true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithCredits 设置星星余额
func WithCredits(n int) func(*model.User) {
	return func(u *model.User) {
		u.StoryCredits = n
	}
}

// WithCartoonCredits 设置动画券余额
func WithCartoonCredits(n int) func(*model.User) {
	return func(u *model.User) {
		u.CartoonCredits = n
	}
}

// WithSubscription 设置订阅类型和截止时间
func WithSubscription(subType string, until time.Time) func(*model.User) {
	return func(u *model.User) {
		u.SubscriptionType = &subType
		u.SubscriptionUntil = &until
	}
}

// WithoutSubscription 清除订阅
func WithoutSubscription() func(*model.User) {
	return func(u *model.User) {
		u.SubscriptionType = nil
		u.SubscriptionUntil = nil
	}
}

// WithFreeTrialUsed 设置试用已用故事数
func WithFreeTrialUsed(n int) func(*model.User) {
	return func(u *model.User) {
		u.FreeTrialStoriesUsed = n
	}
}

// WithAdmin 设为管理员
func WithAdmin() func(*model.User) {
	return func(u *model.User) {
		u.IsAdmin = true
	}
}

// TestStory 创建测试故事
func TestStory(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Story)) *model.Story {
	t.Helper()

	story := &model.Story{
		UserID:    userID,
		ChildName: "小明",
		ChildAge:  5,
		Topic:     "勇敢的小兔子",
		Title:     "月亮上的小兔子",
		Text:      "从前有一只住在月亮上的小兔子，它每天晚上都会看着地球。",
		WordCount: 26,
	}

	for _, opt := range opts {
		opt(story)
	}

	if err := db.Create(story).Error; err != nil {
		t.Fatalf("Failed to create test story: %v", err)
	}

	return story
}

// WithCartoonRequested 设置动画已请求
func WithCartoonRequested(status string) func(*model.Story) {
	return func(s *model.Story) {
		s.CartoonRequested = true
		s.CartoonStatus = status
	}
}

// TestPayment 创建测试支付流水
func TestPayment(t *testing.T, db *gorm.DB, contractID, email string, amount float64) *model.Payment {
	t.Helper()

	payment := &model.Payment{
		ContractID: contractID,
		Email:      email,
		Amount:     amount,
		Currency:   "CNY",
		Status:     model.PaymentStatusSuccess,
		EventType:  "payment.success",
	}

	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return payment
}

// TestJob 创建测试动画任务
func TestJob(t *testing.T, db *gorm.DB, userID, storyID int64, status string) *model.CartoonJob {
	t.Helper()

	job := &model.CartoonJob{
		StoryID: storyID,
		UserID:  userID,
		Status:  status,
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}
