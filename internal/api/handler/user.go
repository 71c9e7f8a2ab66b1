package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/moonfable/tale_go_server/internal/api/middleware"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/response"
	"github.com/moonfable/tale_go_server/internal/service"
)

const maxAvatarSize = 5 << 20 // 5MB

type UserHandler struct {
	userService   *service.UserService
	creditService *service.CreditService
}

func NewUserHandler(userService *service.UserService, creditService *service.CreditService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		creditService: creditService,
	}
}

// GetProfile 获取用户详情
// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	info, err := h.userService.GetProfile(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// UpdateProfile 更新用户信息
// PUT /api/v1/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.userService.UpdateProfile(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrUsernameExists):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, info)
}

// UploadAvatar 上传用户头像
// POST /api/v1/user/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		response.ParamError(c, "请选择要上传的头像文件")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarSize {
		response.ParamError(c, "头像文件不能超过 5MB")
		return
	}

	avatarURL, err := h.userService.UploadAvatar(userID, file, header.Filename)
	if err != nil {
		response.ServerError(c, "头像上传失败")
		return
	}

	response.SuccessWithMessage(c, "头像上传成功", gin.H{
		"avatar_url": avatarURL,
	})
}

// GetBalance 查询星星 / 动画券余额和订阅状态
// GET /api/v1/user/balance
func (h *UserHandler) GetBalance(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	balance, err := h.creditService.GetBalance(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, balance)
}
