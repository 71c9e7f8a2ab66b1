package repository

import (
	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/internal/model"
)

type StoryRepository struct {
	db *gorm.DB
}

func NewStoryRepository(db *gorm.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

func (r *StoryRepository) Create(story *model.Story) error {
	return r.db.Create(story).Error
}

func (r *StoryRepository) GetByID(id int64) (*model.Story, error) {
	var story model.Story
	err := r.db.Where("id = ?", id).First(&story).Error
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (r *StoryRepository) Update(story *model.Story) error {
	return r.db.Save(story).Error
}

func (r *StoryRepository) Delete(id int64) error {
	return r.db.Delete(&model.Story{}, id).Error
}

func (r *StoryRepository) ListByUserID(userID int64, page, pageSize int, search string) ([]*model.Story, int64, error) {
	query := r.db.Model(&model.Story{}).Where("user_id = ?", userID)

	if search != "" {
		query = query.Where("title LIKE ? OR topic LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var stories []*model.Story
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&stories).Error
	if err != nil {
		return nil, 0, err
	}

	return stories, total, nil
}

// MarkCartoonRequested 条件置位请求标记：已置位过的行不再命中，保证至多一次。
// 返回是否命中（false 表示已被请求过）
func (r *StoryRepository) MarkCartoonRequested(id int64) (bool, error) {
	result := r.db.Model(&model.Story{}).
		Where("id = ? AND cartoon_requested = ?", id, false).
		Updates(map[string]interface{}{
			"cartoon_requested": true,
			"cartoon_status":    model.CartoonStatusPending,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ResetCartoonRequested 复位请求标记（建任务 / 入队失败的补偿），恢复可重试
func (r *StoryRepository) ResetCartoonRequested(id int64) error {
	return r.db.Model(&model.Story{}).
		Where("id = ? AND cartoon_requested = ?", id, true).
		Updates(map[string]interface{}{
			"cartoon_requested": false,
			"cartoon_status":    "",
		}).Error
}

func (r *StoryRepository) UpdateCartoonStatus(id int64, status string) error {
	return r.db.Model(&model.Story{}).Where("id = ?", id).
		Update("cartoon_status", status).Error
}

func (r *StoryRepository) SetCartoonResult(id int64, status, cartoonURL string) error {
	return r.db.Model(&model.Story{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cartoon_status": status,
		"cartoon_url":    cartoonURL,
	}).Error
}

func (r *StoryRepository) SetAudioURL(id int64, audioURL string) error {
	return r.db.Model(&model.Story{}).Where("id = ?", id).
		Update("audio_url", audioURL).Error
}
