package main

import (
	"context"
	"fmt"
	"log"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/api"
	"github.com/moonfable/tale_go_server/internal/api/handler"
	"github.com/moonfable/tale_go_server/internal/database"
	"github.com/moonfable/tale_go_server/internal/pkg/audio"
	"github.com/moonfable/tale_go_server/internal/pkg/cron"
	"github.com/moonfable/tale_go_server/internal/pkg/email"
	"github.com/moonfable/tale_go_server/internal/pkg/oauth"
	"github.com/moonfable/tale_go_server/internal/pkg/oss"
	"github.com/moonfable/tale_go_server/internal/pkg/provider"
	"github.com/moonfable/tale_go_server/internal/pkg/pubsub"
	"github.com/moonfable/tale_go_server/internal/pkg/queue"
	"github.com/moonfable/tale_go_server/internal/pkg/ws"
	"github.com/moonfable/tale_go_server/internal/repository"
	"github.com/moonfable/tale_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 初始化邮件服务（可选）
	var emailSvc *email.Service
	if cfg.Email.SMTPHost != "" {
		emailSvc = email.NewService(&cfg.Email)
		log.Println("Email service initialized")
	}

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.CartoonQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)
	stateStore := oauth.NewStateStore(rdb)

	// 初始化 WebSocket Hub，订阅动画进度转发给在线用户
	wsHub := ws.NewHub()
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			wsHub.SendToUser(msg.UserID, &ws.Message{
				Type: msg.Type,
				Data: msg,
			})
		})
		if err != nil && err != context.Canceled {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化上游客户端和混音器
	storyClient := provider.NewStoryClient(&cfg.Provider.Story)
	ttsClient := provider.NewTTSClient(&cfg.Provider.TTS)
	imageClient := provider.NewImageClient(&cfg.Provider.Image)
	mixer := audio.NewMixer(&cfg.Audio)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	jobRepo := repository.NewJobRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// 初始化 Service
	creditService := service.NewCreditService(userRepo, cfg)
	authService := service.NewAuthService(userRepo, creditService, emailSvc, cfg)
	userService := service.NewUserService(userRepo, creditService, ossClient, cfg)
	storyService := service.NewStoryService(storyRepo, jobRepo, userRepo, creditService, storyClient, jobQueue, publisher, ossClient, cfg)
	audioService := service.NewAudioService(storyRepo, userRepo, creditService, storyService, ttsClient, imageClient, mixer, ossClient, cfg)
	paymentService := service.NewPaymentService(userRepo, paymentRepo, emailSvc, cfg)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService, stateStore)
	userHandler := handler.NewUserHandler(userService, creditService)
	storyHandler := handler.NewStoryHandler(storyService, creditService)
	audioHandler := handler.NewAudioHandler(audioService, creditService)
	paymentHandler := handler.NewPaymentHandler(paymentService, userService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 启动混音临时目录清理
	cronService := cron.NewService(cfg.Audio.TempDir, cfg.Audio.ExpireHours)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		userHandler,
		storyHandler,
		audioHandler,
		paymentHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
