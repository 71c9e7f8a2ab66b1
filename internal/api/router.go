package api

import (
	"github.com/gin-gonic/gin"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/api/handler"
	"github.com/moonfable/tale_go_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	userHandler      *handler.UserHandler
	storyHandler     *handler.StoryHandler
	audioHandler     *handler.AudioHandler
	paymentHandler   *handler.PaymentHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	storyHandler *handler.StoryHandler,
	audioHandler *handler.AudioHandler,
	paymentHandler *handler.PaymentHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		userHandler:      userHandler,
		storyHandler:     storyHandler,
		audioHandler:     audioHandler,
		paymentHandler:   paymentHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/verify-email", r.authHandler.VerifyEmail)
			auth.GET("/google", r.authHandler.GoogleAuth)
			auth.GET("/google/callback", r.authHandler.GoogleCallback)
		}

		// 支付回调（共享密钥鉴权，不走 JWT）
		webhook := api.Group("/payments")
		webhook.Use(middleware.WebhookSecret(r.cfg.Payment.WebhookSecret))
		{
			webhook.POST("/webhook", r.paymentHandler.Webhook)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
				user.POST("/avatar", r.userHandler.UploadAvatar)
				user.GET("/balance", r.userHandler.GetBalance)
			}

			// 故事
			stories := authenticated.Group("/stories")
			{
				stories.POST("", r.storyHandler.Generate)
				stories.GET("", r.storyHandler.List)
				stories.GET("/:id", r.storyHandler.Get)
				stories.DELETE("/:id", r.storyHandler.Delete)
				stories.POST("/:id/cartoon", r.storyHandler.RequestCartoon)
				stories.GET("/:id/cartoon", r.storyHandler.GetCartoonStatus)
				stories.POST("/:id/audio", r.audioHandler.GenerateNarration)
			}

			// 角色形象
			authenticated.POST("/characters/image", r.audioHandler.GenerateCharacterImage)

			// 支付流水
			authenticated.GET("/payments", r.paymentHandler.ListMine)
		}
	}

	return engine
}
