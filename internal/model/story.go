package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// StringArray 用于 JSON 数组字段
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// 动画状态
const (
	CartoonStatusPending    = "pending"
	CartoonStatusProcessing = "processing"
	CartoonStatusCompleted  = "completed"
	CartoonStatusFailed     = "failed"
)

type Story struct {
	ID               int64       `gorm:"primaryKey" json:"id"`
	UserID           int64       `gorm:"not null;index" json:"user_id"`
	ChildName        string      `gorm:"size:50" json:"child_name"`
	ChildAge         int         `json:"child_age"`
	ChildGender      string      `gorm:"size:10" json:"child_gender"`
	ChildInterests   StringArray `gorm:"type:json" json:"child_interests,omitempty"`
	Topic            string      `gorm:"size:200" json:"topic"`
	Character        string      `gorm:"size:100" json:"character"`
	DurationMinutes  int         `json:"duration_minutes"`
	Title            string      `gorm:"size:200" json:"title"`
	Text             string      `gorm:"type:longtext" json:"text"`
	WordCount        int         `json:"word_count"`
	AudioURL         string      `gorm:"size:500" json:"audio_url,omitempty"`
	// cartoon_requested 只置位一次，从不复位
	CartoonRequested bool        `gorm:"default:false" json:"cartoon_requested"`
	CartoonStatus    string      `gorm:"size:20" json:"cartoon_status,omitempty"` // pending, processing, completed, failed
	CartoonURL       string      `gorm:"size:500" json:"cartoon_url,omitempty"`
	CreatedAt        time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Story) TableName() string {
	return "stories"
}
