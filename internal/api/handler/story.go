package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moonfable/tale_go_server/internal/api/middleware"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/response"
	"github.com/moonfable/tale_go_server/internal/service"
)

type StoryHandler struct {
	storyService  *service.StoryService
	creditService *service.CreditService
}

func NewStoryHandler(storyService *service.StoryService, creditService *service.CreditService) *StoryHandler {
	return &StoryHandler{
		storyService:  storyService,
		creditService: creditService,
	}
}

// Generate 生成故事
// POST /api/v1/stories
func (h *StoryHandler) Generate(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.storyService.Generate(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionRequired):
			response.SubscriptionError(c, err.Error())
		case errors.Is(err, service.ErrFreeTrialLimit):
			response.FreeTrialError(c, err.Error())
		case errors.Is(err, service.ErrStoryGeneration):
			response.ServerError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "故事生成成功", resp)
}

// List 故事列表
// GET /api/v1/stories?page=1&page_size=20&search=xxx
func (h *StoryHandler) List(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	search := c.Query("search")

	items, total, err := h.storyService.List(userID, page, pageSize, search)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 故事详情
// GET /api/v1/stories/:id
func (h *StoryHandler) Get(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	storyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的故事 ID")
		return
	}

	detail, err := h.storyService.Get(userID, storyID)
	if err != nil {
		h.renderStoryError(c, err)
		return
	}

	response.Success(c, detail)
}

// Delete 删除故事
// DELETE /api/v1/stories/:id
func (h *StoryHandler) Delete(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	storyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的故事 ID")
		return
	}

	if err := h.storyService.Delete(userID, storyID); err != nil {
		h.renderStoryError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// RequestCartoon 请求生成动画
// POST /api/v1/stories/:id/cartoon
func (h *StoryHandler) RequestCartoon(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	storyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的故事 ID")
		return
	}

	resp, err := h.storyService.RequestCartoon(c.Request.Context(), userID, storyID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCartoonAlreadyRequested):
			response.DuplicateError(c, err.Error())
		case errors.Is(err, service.ErrInsufficientCredits):
			h.renderCreditsError(c, userID, service.ActionCartoonRequest, err)
		default:
			h.renderStoryError(c, err)
		}
		return
	}

	response.SuccessWithMessage(c, "动画任务已创建", resp)
}

// GetCartoonStatus 查询动画任务状态
// GET /api/v1/stories/:id/cartoon
func (h *StoryHandler) GetCartoonStatus(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	storyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的故事 ID")
		return
	}

	status, err := h.storyService.GetCartoonStatus(userID, storyID)
	if err != nil {
		h.renderStoryError(c, err)
		return
	}

	response.Success(c, status)
}

func (h *StoryHandler) renderStoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStoryNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrPermissionDenied):
		response.PermissionError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}

// renderCreditsError 余额不足时回传 required/current，前端据此引导购买
func (h *StoryHandler) renderCreditsError(c *gin.Context, userID int64, action service.Action, err error) {
	required := h.creditService.Cost(action)
	current := 0
	if balance, berr := h.creditService.GetBalance(userID); berr == nil {
		current = balance.StoryCredits
	}
	response.CreditsError(c, err.Error(), required, current)
}
