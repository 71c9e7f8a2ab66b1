package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/moonfable/tale_go_server/internal/pkg/response"
)

const webhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret 支付回调鉴权：校验共享密钥请求头，先于请求体解析执行。
// 未配置密钥时拒绝所有请求，避免误开裸回调口
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(webhookSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			response.AuthError(c, "回调鉴权失败")
			c.Abort()
			return
		}
		c.Next()
	}
}
