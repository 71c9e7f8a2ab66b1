package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByGoogleID(googleID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("google_id = ?", googleID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByVerificationCode(code string) (*model.User, error) {
	var user model.User
	err := r.db.Where("verification_code = ?", code).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// DebitStoryCredits 原子扣减星星：余额不足时一行都不更新，余额永远不会为负。
// 返回是否扣减成功（条件更新命中）
func (r *UserRepository) DebitStoryCredits(id int64, cost int) (bool, error) {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND story_credits >= ?", id, cost).
		Update("story_credits", gorm.Expr("story_credits - ?", cost))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AddStoryCredits 增加星星（支付发放 / 扣减补偿退还）
func (r *UserRepository) AddStoryCredits(id int64, n int) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("story_credits", gorm.Expr("story_credits + ?", n)).Error
}

// AddCartoonCredits 增加动画券并刷新有效期
func (r *UserRepository) AddCartoonCredits(id int64, n int, expireAt time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cartoon_credits":            gorm.Expr("cartoon_credits + ?", n),
		"cartoon_credits_expire_at":  expireAt,
	}).Error
}

// GrantSubscription 设置订阅类型并延长订阅截止时间
func (r *UserRepository) GrantSubscription(id int64, subType string, until time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subscription_type":  subType,
		"subscription_until": until,
	}).Error
}

// IncrementFreeTrialStories 试用故事计数 +1
func (r *UserRepository) IncrementFreeTrialStories(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("free_trial_stories_used", gorm.Expr("free_trial_stories_used + 1")).Error
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
