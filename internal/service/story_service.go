package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/oss"
	"github.com/moonfable/tale_go_server/internal/pkg/provider"
	"github.com/moonfable/tale_go_server/internal/pkg/pubsub"
	"github.com/moonfable/tale_go_server/internal/pkg/queue"
	"github.com/moonfable/tale_go_server/internal/repository"
)

var (
	ErrStoryNotFound           = errors.New("故事不存在")
	ErrPermissionDenied        = errors.New("无权操作该故事")
	ErrCartoonAlreadyRequested = errors.New("该故事已经请求过动画")
	ErrStoryGeneration         = errors.New("故事生成服务暂时不可用，请稍后重试")
)

type StoryService struct {
	storyRepo     *repository.StoryRepository
	jobRepo       *repository.JobRepository
	userRepo      *repository.UserRepository
	creditService *CreditService
	storyClient   *provider.StoryClient
	queue         *queue.Queue
	publisher     *pubsub.Publisher
	ossClient     *oss.Client
	cfg           *config.Config
}

func NewStoryService(
	storyRepo *repository.StoryRepository,
	jobRepo *repository.JobRepository,
	userRepo *repository.UserRepository,
	creditService *CreditService,
	storyClient *provider.StoryClient,
	q *queue.Queue,
	publisher *pubsub.Publisher,
	ossClient *oss.Client,
	cfg *config.Config,
) *StoryService {
	return &StoryService{
		storyRepo:     storyRepo,
		jobRepo:       jobRepo,
		userRepo:      userRepo,
		creditService: creditService,
		storyClient:   storyClient,
		queue:         q,
		publisher:     publisher,
		ossClient:     ossClient,
		cfg:           cfg,
	}
}

// Generate 生成一篇故事。订阅有效才放行，试用订阅另有篇数上限；
// 生成成功且为试用用户时计数 +1
func (s *StoryService) Generate(ctx context.Context, userID int64, req *dto.GenerateStoryRequest) (*dto.GenerateStoryResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.creditService.Check(user, ActionStoryGeneration); err != nil {
		return nil, err
	}

	result, err := s.storyClient.Generate(ctx, &provider.StoryParams{
		ChildName:       req.ChildName,
		ChildAge:        req.ChildAge,
		ChildGender:     req.ChildGender,
		ChildInterests:  req.ChildInterests,
		Topic:           req.Topic,
		Character:       req.Character,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		log.Printf("Story generation failed for user %d: %v", userID, err)
		return nil, ErrStoryGeneration
	}

	story := &model.Story{
		UserID:          userID,
		ChildName:       req.ChildName,
		ChildAge:        req.ChildAge,
		ChildGender:     req.ChildGender,
		ChildInterests:  req.ChildInterests,
		Topic:           req.Topic,
		Character:       req.Character,
		DurationMinutes: req.DurationMinutes,
		Title:           result.Title,
		Text:            result.Text,
		WordCount:       utf8.RuneCountInString(result.Text),
	}
	if err := s.storyRepo.Create(story); err != nil {
		return nil, err
	}

	if user.IsFreeTrial() {
		// 故事已经生成给到用户，计数失败只记日志
		if err := s.userRepo.IncrementFreeTrialStories(userID); err != nil {
			log.Printf("Failed to increment free trial counter for user %d: %v", userID, err)
		}
	}

	balance, err := s.creditService.GetBalance(userID)
	if err != nil {
		return nil, err
	}

	return &dto.GenerateStoryResponse{
		Story:   toStoryDetail(story),
		Balance: balance,
	}, nil
}

// RequestCartoon 请求把故事做成动画。扣费在前，置位标记 / 建任务 / 入队；
// 置位后任何一步失败，退还星星的同时复位标记、取消任务行，保证失败可重试
func (s *StoryService) RequestCartoon(ctx context.Context, userID, storyID int64) (*dto.RequestCartoonResponse, error) {
	story, err := s.getOwnedStory(userID, storyID)
	if err != nil {
		return nil, err
	}
	if story.CartoonRequested {
		return nil, ErrCartoonAlreadyRequested
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	var job *model.CartoonJob
	flagged := false
	err = s.creditService.DebitThenExecute(user, ActionCartoonRequest, func() error {
		applied, err := s.storyRepo.MarkCartoonRequested(storyID)
		if err != nil {
			return err
		}
		if !applied {
			// 并发请求抢先置位，触发外层退款
			return ErrCartoonAlreadyRequested
		}
		flagged = true

		job = &model.CartoonJob{
			StoryID: storyID,
			UserID:  userID,
			Status:  "queued",
		}
		if err := s.jobRepo.Create(job); err != nil {
			return err
		}

		return s.queue.Push(ctx, &queue.JobMessage{
			JobID:   job.ID,
			StoryID: storyID,
			UserID:  userID,
			Title:   story.Title,
			Prompt:  buildCartoonPrompt(story),
		})
	})
	if err != nil {
		if flagged {
			// 补偿置位：标记不复位的话，退了款的用户也再请求不了动画
			if rerr := s.storyRepo.ResetCartoonRequested(storyID); rerr != nil {
				log.Printf("Failed to reset cartoon flag for story %d: %v", storyID, rerr)
			}
			if cerr := s.jobRepo.CancelByStoryID(storyID); cerr != nil {
				log.Printf("Failed to cancel cartoon jobs for story %d: %v", storyID, cerr)
			}
		}
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID:  userID,
			StoryID: storyID,
			JobID:   job.ID,
			Status:  "queued",
			Step:    pubsub.StepQueued,
		}); err != nil {
			log.Printf("Failed to publish queued progress for job %d: %v", job.ID, err)
		}
	}

	balance, err := s.creditService.GetBalance(userID)
	if err != nil {
		return nil, err
	}

	return &dto.RequestCartoonResponse{
		StoryID: storyID,
		JobID:   job.ID,
		Status:  "queued",
		Balance: balance,
	}, nil
}

// GetCartoonStatus 查询动画任务状态
func (s *StoryService) GetCartoonStatus(userID, storyID int64) (*dto.CartoonStatusResponse, error) {
	story, err := s.getOwnedStory(userID, storyID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByStoryID(storyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}

	resp := &dto.CartoonStatusResponse{
		JobID:          job.ID,
		StoryID:        storyID,
		Status:         job.Status,
		CurrentStep:    job.CurrentStep,
		ErrorMessage:   job.ErrorMessage,
		CartoonURL:     story.CartoonURL,
		ElapsedSeconds: job.ElapsedSeconds,
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	return resp, nil
}

// List 按创建时间倒序分页列出用户的故事
func (s *StoryService) List(userID int64, page, pageSize int, search string) ([]*dto.StoryListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	stories, total, err := s.storyRepo.ListByUserID(userID, page, pageSize, search)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.StoryListItem, 0, len(stories))
	for _, story := range stories {
		items = append(items, &dto.StoryListItem{
			ID:               story.ID,
			Title:            story.Title,
			ChildName:        story.ChildName,
			Topic:            story.Topic,
			WordCount:        story.WordCount,
			CartoonRequested: story.CartoonRequested,
			CartoonStatus:    story.CartoonStatus,
			CreatedAt:        story.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// Get 获取故事详情（仅本人可见）
func (s *StoryService) Get(userID, storyID int64) (*dto.StoryDetail, error) {
	story, err := s.getOwnedStory(userID, storyID)
	if err != nil {
		return nil, err
	}
	return toStoryDetail(story), nil
}

// Delete 删除故事，同时取消尚未完成的动画任务并回收 OSS 产物
func (s *StoryService) Delete(userID, storyID int64) error {
	story, err := s.getOwnedStory(userID, storyID)
	if err != nil {
		return err
	}

	if err := s.jobRepo.CancelByStoryID(storyID); err != nil {
		log.Printf("Failed to cancel cartoon jobs for story %d: %v", storyID, err)
	}

	// 产物清理尽力而为，失败不阻塞删除
	s.deleteArtifact(story.AudioURL)
	s.deleteArtifact(story.CartoonURL)

	return s.storyRepo.Delete(storyID)
}

func (s *StoryService) deleteArtifact(url string) {
	if s.ossClient == nil || url == "" || strings.HasPrefix(url, "local://") {
		return
	}
	if err := s.ossClient.Delete(s.ossClient.ExtractObjectKey(url)); err != nil {
		log.Printf("Failed to delete OSS artifact %s: %v", url, err)
	}
}

func (s *StoryService) getOwnedStory(userID, storyID int64) (*model.Story, error) {
	story, err := s.storyRepo.GetByID(storyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}
	if story.UserID != userID {
		return nil, ErrPermissionDenied
	}
	return story, nil
}

func buildCartoonPrompt(story *model.Story) string {
	return fmt.Sprintf("儿童绘本画风，温暖明亮的色彩。故事《%s》：%s", story.Title, story.Topic)
}

func toStoryDetail(story *model.Story) *dto.StoryDetail {
	return &dto.StoryDetail{
		ID:               story.ID,
		ChildName:        story.ChildName,
		ChildAge:         story.ChildAge,
		ChildGender:      story.ChildGender,
		ChildInterests:   story.ChildInterests,
		Topic:            story.Topic,
		Character:        story.Character,
		DurationMinutes:  story.DurationMinutes,
		Title:            story.Title,
		Text:             story.Text,
		WordCount:        story.WordCount,
		AudioURL:         story.AudioURL,
		CartoonRequested: story.CartoonRequested,
		CartoonStatus:    story.CartoonStatus,
		CartoonURL:       story.CartoonURL,
		CreatedAt:        story.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        story.UpdatedAt.Format(time.RFC3339),
	}
}
