package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model"
	"github.com/moonfable/tale_go_server/internal/pkg/oss"
	"github.com/moonfable/tale_go_server/internal/pkg/provider"
	"github.com/moonfable/tale_go_server/internal/pkg/pubsub"
	"github.com/moonfable/tale_go_server/internal/pkg/queue"
	"github.com/moonfable/tale_go_server/internal/repository"
)

// Processor 动画任务处理器
type Processor struct {
	jobRepo     *repository.JobRepository
	storyRepo   *repository.StoryRepository
	imageClient *provider.ImageClient
	ossClient   *oss.Client
	publisher   *pubsub.Publisher
	cfg         *config.Config
}

// NewProcessor 创建任务处理器
func NewProcessor(
	jobRepo *repository.JobRepository,
	storyRepo *repository.StoryRepository,
	imageClient *provider.ImageClient,
	ossClient *oss.Client,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:     jobRepo,
		storyRepo:   storyRepo,
		imageClient: imageClient,
		ossClient:   ossClient,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// Process 处理动画生成任务
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	// 删故事会把任务标记为 cancelled，入队到出队之间取消的任务直接跳过
	if job.Status == "cancelled" {
		log.Printf("Job %d: cancelled before processing, skipping", job.ID)
		return nil
	}

	// 更新状态为处理中
	now := time.Now()
	job.Status = "processing"
	job.StartedAt = &now
	p.jobRepo.Update(job)
	p.storyRepo.UpdateCartoonStatus(job.StoryID, model.CartoonStatusProcessing)

	// 定义进度推送辅助函数
	publishProgress := func(step, status string, errMsg string) {
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID:  msg.UserID,
			StoryID: msg.StoryID,
			JobID:   msg.JobID,
			Status:  status,
			Step:    step,
			Error:   errMsg,
		})
	}

	// 定义失败处理函数
	handleError := func(step string, err error) error {
		errMsg := err.Error()
		job.Status = "failed"
		job.ErrorMessage = errMsg
		job.CurrentStep = step
		completedAt := time.Now()
		job.CompletedAt = &completedAt
		job.ElapsedSeconds = int(completedAt.Sub(*job.StartedAt).Seconds())
		p.jobRepo.Update(job)
		p.storyRepo.UpdateCartoonStatus(job.StoryID, model.CartoonStatusFailed)
		publishProgress(step, "failed", errMsg)
		return err
	}

	// Step 1: 绘制动画画面
	log.Printf("Job %d: drawing cartoon for story %d", job.ID, msg.StoryID)
	job.CurrentStep = "正在绘制动画画面"
	p.jobRepo.Update(job)
	publishProgress(pubsub.StepDrawing, "processing", "")

	imageURL, err := p.imageClient.Generate(ctx, msg.Prompt)
	if err != nil {
		return handleError(pubsub.StepDrawing, fmt.Errorf("cartoon generation failed: %w", err))
	}

	// Step 2: 转存结果
	log.Printf("Job %d: uploading result", job.ID)
	job.CurrentStep = "正在上传结果"
	p.jobRepo.Update(job)
	publishProgress(pubsub.StepUploading, "processing", "")

	var cartoonURL string
	if p.ossClient != nil {
		data, err := p.imageClient.Download(ctx, imageURL)
		if err != nil {
			return handleError(pubsub.StepUploading, fmt.Errorf("failed to download cartoon: %w", err))
		}
		cartoonURL, err = p.ossClient.UploadCartoonImage(msg.StoryID, data)
		if err != nil {
			return handleError(pubsub.StepUploading, fmt.Errorf("failed to upload cartoon: %w", err))
		}
	} else {
		// 本地存储模式 - 保存到文件
		data, err := p.imageClient.Download(ctx, imageURL)
		if err != nil {
			return handleError(pubsub.StepUploading, fmt.Errorf("failed to download cartoon: %w", err))
		}
		localDir := filepath.Join(p.cfg.Audio.TempDir, "cartoons")
		if err := os.MkdirAll(localDir, 0755); err != nil {
			return handleError(pubsub.StepUploading, fmt.Errorf("failed to create cartoon dir: %w", err))
		}
		localPath := filepath.Join(localDir, fmt.Sprintf("%d.png", msg.StoryID))
		if err := os.WriteFile(localPath, data, 0644); err != nil {
			return handleError(pubsub.StepUploading, fmt.Errorf("failed to save cartoon locally: %w", err))
		}
		cartoonURL = "local://" + localPath
		log.Printf("Job %d: saved cartoon locally (OSS not configured)", job.ID)
	}

	// Step 3: 更新数据库
	if err := p.storyRepo.SetCartoonResult(msg.StoryID, model.CartoonStatusCompleted, cartoonURL); err != nil {
		return handleError(pubsub.StepDone, fmt.Errorf("failed to update story: %w", err))
	}

	job.Status = "completed"
	job.CurrentStep = "动画制作完成"
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.ElapsedSeconds = int(completedAt.Sub(*job.StartedAt).Seconds())
	p.jobRepo.Update(job)

	// 推送完成消息
	publishProgress(pubsub.StepDone, "completed", "")

	log.Printf("Job %d: completed in %d seconds", job.ID, job.ElapsedSeconds)

	return nil
}
