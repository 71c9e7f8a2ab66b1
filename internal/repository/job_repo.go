package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.CartoonJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.CartoonJob, error) {
	var job model.CartoonJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) GetByStoryID(storyID int64) (*model.CartoonJob, error) {
	var job model.CartoonJob
	err := r.db.Where("story_id = ?", storyID).Order("created_at DESC").First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) Update(job *model.CartoonJob) error {
	return r.db.Save(job).Error
}

// CancelByStoryID 取消某故事下未完成的任务（删故事时调用）
func (r *JobRepository) CancelByStoryID(storyID int64) error {
	return r.db.Model(&model.CartoonJob{}).
		Where("story_id = ? AND status IN ?", storyID, []string{"queued", "processing"}).
		Updates(map[string]interface{}{
			"status":       "cancelled",
			"completed_at": time.Now(),
		}).Error
}
