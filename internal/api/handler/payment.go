package handler

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moonfable/tale_go_server/internal/api/middleware"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/response"
	"github.com/moonfable/tale_go_server/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
	userService    *service.UserService
}

func NewPaymentHandler(paymentService *service.PaymentService, userService *service.UserService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		userService:    userService,
	}
}

// Webhook 支付平台回调入口。鉴权由 WebhookSecret 中间件完成。
// 只有处理失败（落库失败等）才返回 5xx 让平台重试；
// 重复投递、未知事件类型都返回 200 确认，避免无意义的重试风暴
// POST /api/v1/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var event dto.PaymentWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.paymentService.HandleEvent(&event); err != nil {
		log.Printf("Webhook processing failed: contract=%s event=%s: %v", event.ContractID, event.EventType, err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"received": true})
}

// ListMine 查询当前用户的支付流水
// GET /api/v1/payments?page=1&page_size=20
func (h *PaymentHandler) ListMine(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	info, err := h.userService.GetProfile(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}
	if info.Email == "" {
		response.SuccessPage(c, 0, 1, 20, []struct{}{})
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)

	payments, total, err := h.paymentService.ListByEmail(info.Email, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, payments)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}
