package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess              = 0
	CodeParamError           = 1000
	CodeAuthFailed           = 1001
	CodePermissionDenied     = 1002
	CodeResourceNotFound     = 1003
	CodeInsufficientCredits  = 1004
	CodeDuplicateAction      = 1005
	CodeSubscriptionRequired = 1006
	CodeFreeTrialLimit       = 1007
	CodeServerError          = 5000
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:              "success",
	CodeParamError:           "参数错误",
	CodeAuthFailed:           "认证失败",
	CodePermissionDenied:     "权限不足",
	CodeResourceNotFound:     "资源不存在",
	CodeInsufficientCredits:  "星星余额不足",
	CodeDuplicateAction:      "重复操作",
	CodeSubscriptionRequired: "需要订阅后使用",
	CodeFreeTrialLimit:       "试用次数已用完",
	CodeServerError:          "服务器内部错误",
}

// 错误码对应的 HTTP 状态码：401 未认证，402 余额/订阅不足，403 无权限，404 不存在，409 重复
var codeStatus = map[int]int{
	CodeSuccess:              http.StatusOK,
	CodeParamError:           http.StatusBadRequest,
	CodeAuthFailed:           http.StatusUnauthorized,
	CodePermissionDenied:     http.StatusForbidden,
	CodeResourceNotFound:     http.StatusNotFound,
	CodeInsufficientCredits:  http.StatusPaymentRequired,
	CodeDuplicateAction:      http.StatusConflict,
	CodeSubscriptionRequired: http.StatusPaymentRequired,
	CodeFreeTrialLimit:       http.StatusPaymentRequired,
	CodeServerError:          http.StatusInternalServerError,
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData 分页数据结构
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: PageData{
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			Items:    items,
		},
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 带附加数据的错误响应（余额不足时回传 required/current）
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	if message == "" {
		message = codeMessages[code]
	}
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// CreditsError 星星余额不足
func CreditsError(c *gin.Context, message string, required, current int) {
	ErrorWithData(c, CodeInsufficientCredits, message, gin.H{
		"required": required,
		"current":  current,
	})
}

// DuplicateError 重复操作
func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

// SubscriptionError 需要订阅
func SubscriptionError(c *gin.Context, message string) {
	Error(c, CodeSubscriptionRequired, message)
}

// FreeTrialError 试用次数用完
func FreeTrialError(c *gin.Context, message string) {
	Error(c, CodeFreeTrialLimit, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}
