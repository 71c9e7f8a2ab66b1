package model

import (
	"time"
)

type CartoonJob struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	StoryID        int64      `gorm:"not null;index" json:"story_id"`
	UserID         int64      `gorm:"not null;index" json:"user_id"`
	Status         string     `gorm:"size:20;default:queued;index" json:"status"` // queued, processing, completed, failed, cancelled
	CurrentStep    string     `gorm:"size:200" json:"current_step,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
}

func (CartoonJob) TableName() string {
	return "cartoon_jobs"
}
