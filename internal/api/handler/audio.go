package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moonfable/tale_go_server/internal/api/middleware"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/audio"
	"github.com/moonfable/tale_go_server/internal/pkg/response"
	"github.com/moonfable/tale_go_server/internal/service"
)

type AudioHandler struct {
	audioService  *service.AudioService
	creditService *service.CreditService
}

func NewAudioHandler(audioService *service.AudioService, creditService *service.CreditService) *AudioHandler {
	return &AudioHandler{
		audioService:  audioService,
		creditService: creditService,
	}
}

// GenerateNarration 生成故事朗读音频（可选背景音乐混音）
// POST /api/v1/stories/:id/audio
func (h *AudioHandler) GenerateNarration(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	storyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的故事 ID")
		return
	}

	var req dto.GenerateAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.audioService.GenerateNarration(c.Request.Context(), userID, storyID, &req)
	if err != nil {
		h.renderAudioError(c, userID, service.ActionNarration, err)
		return
	}

	response.SuccessWithMessage(c, "朗读音频生成成功", resp)
}

// GenerateCharacterImage 生成角色形象
// POST /api/v1/characters/image
func (h *AudioHandler) GenerateCharacterImage(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.GenerateCharacterImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.audioService.GenerateCharacterImage(c.Request.Context(), userID, &req)
	if err != nil {
		h.renderAudioError(c, userID, service.ActionCharacterImage, err)
		return
	}

	response.SuccessWithMessage(c, "角色形象生成成功", resp)
}

func (h *AudioHandler) renderAudioError(c *gin.Context, userID int64, action service.Action, err error) {
	var mixErr *audio.MixError

	switch {
	case errors.Is(err, service.ErrStoryNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrMusicTrackNotFound):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrInsufficientCredits):
		required := h.creditService.Cost(action)
		current := 0
		if balance, berr := h.creditService.GetBalance(userID); berr == nil {
			current = balance.StoryCredits
		}
		response.CreditsError(c, err.Error(), required, current)
	case errors.As(err, &mixErr):
		// 混音错误只把用户友好消息透出去，原始错误已在混音层落日志
		response.ServerError(c, mixErr.UserMessage)
	case errors.Is(err, service.ErrAudioGeneration), errors.Is(err, service.ErrImageGeneration):
		response.ServerError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
