package dto

// GenerateStoryRequest 生成故事请求
type GenerateStoryRequest struct {
	ChildName       string   `json:"child_name" binding:"required,max=50"`
	ChildAge        int      `json:"child_age" binding:"required,min=1,max=16"`
	ChildGender     string   `json:"child_gender,omitempty" binding:"omitempty,oneof=boy girl"`
	ChildInterests  []string `json:"child_interests,omitempty" binding:"omitempty,max=10,dive,max=30"`
	Topic           string   `json:"topic" binding:"required,max=200"`
	Character       string   `json:"character,omitempty" binding:"omitempty,max=100"`
	DurationMinutes int      `json:"duration_minutes,omitempty" binding:"omitempty,min=1,max=30"`
}

// GenerateStoryResponse 生成故事响应
type GenerateStoryResponse struct {
	Story   *StoryDetail `json:"story"`
	Balance *BalanceInfo `json:"balance"`
}

// StoryListItem 故事列表项
type StoryListItem struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	ChildName        string `json:"child_name"`
	Topic            string `json:"topic"`
	WordCount        int    `json:"word_count"`
	CartoonRequested bool   `json:"cartoon_requested"`
	CartoonStatus    string `json:"cartoon_status,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// StoryDetail 故事详情
type StoryDetail struct {
	ID               int64    `json:"id"`
	ChildName        string   `json:"child_name"`
	ChildAge         int      `json:"child_age"`
	ChildGender      string   `json:"child_gender,omitempty"`
	ChildInterests   []string `json:"child_interests,omitempty"`
	Topic            string   `json:"topic"`
	Character        string   `json:"character,omitempty"`
	DurationMinutes  int      `json:"duration_minutes,omitempty"`
	Title            string   `json:"title"`
	Text             string   `json:"text"`
	WordCount        int      `json:"word_count"`
	AudioURL         string   `json:"audio_url,omitempty"`
	CartoonRequested bool     `json:"cartoon_requested"`
	CartoonStatus    string   `json:"cartoon_status,omitempty"`
	CartoonURL       string   `json:"cartoon_url,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// RequestCartoonResponse 请求动画响应
type RequestCartoonResponse struct {
	StoryID int64        `json:"story_id"`
	JobID   int64        `json:"job_id"`
	Status  string       `json:"status"`
	Balance *BalanceInfo `json:"balance"`
}

// CartoonStatusResponse 动画任务状态
type CartoonStatusResponse struct {
	JobID          int64  `json:"job_id"`
	StoryID        int64  `json:"story_id"`
	Status         string `json:"status"`
	CurrentStep    string `json:"current_step,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CartoonURL     string `json:"cartoon_url,omitempty"`
	StartedAt      string `json:"started_at,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
}
