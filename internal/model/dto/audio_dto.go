package dto

// GenerateAudioRequest 生成朗读音频请求
type GenerateAudioRequest struct {
	Voice      string `json:"voice,omitempty" binding:"omitempty,max=50"`
	MusicTrack string `json:"music_track,omitempty" binding:"omitempty,max=50"` // 曲库里的背景音乐名，为空则不混音
}

// GenerateAudioResponse 生成朗读音频响应
type GenerateAudioResponse struct {
	StoryID  int64        `json:"story_id"`
	AudioURL string       `json:"audio_url"`
	Balance  *BalanceInfo `json:"balance"`
}

// GenerateCharacterImageRequest 生成角色形象请求
type GenerateCharacterImageRequest struct {
	Description string `json:"description" binding:"required,max=500"`
}

// GenerateCharacterImageResponse 生成角色形象响应
type GenerateCharacterImageResponse struct {
	ImageURL string       `json:"image_url"`
	Balance  *BalanceInfo `json:"balance"`
}
