package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/audio"
	"github.com/moonfable/tale_go_server/internal/pkg/oss"
	"github.com/moonfable/tale_go_server/internal/pkg/provider"
	"github.com/moonfable/tale_go_server/internal/repository"
)

var (
	ErrMusicTrackNotFound = errors.New("背景音乐不存在")
	ErrAudioGeneration    = errors.New("音频合成服务暂时不可用，请稍后重试")
	ErrImageGeneration    = errors.New("形象生成服务暂时不可用，请稍后重试")
)

type AudioService struct {
	storyRepo     *repository.StoryRepository
	userRepo      *repository.UserRepository
	creditService *CreditService
	storyService  *StoryService
	ttsClient     *provider.TTSClient
	imageClient   *provider.ImageClient
	mixer         *audio.Mixer
	ossClient     *oss.Client
	cfg           *config.Config
}

func NewAudioService(
	storyRepo *repository.StoryRepository,
	userRepo *repository.UserRepository,
	creditService *CreditService,
	storyService *StoryService,
	ttsClient *provider.TTSClient,
	imageClient *provider.ImageClient,
	mixer *audio.Mixer,
	ossClient *oss.Client,
	cfg *config.Config,
) *AudioService {
	return &AudioService{
		storyRepo:     storyRepo,
		userRepo:      userRepo,
		creditService: creditService,
		storyService:  storyService,
		ttsClient:     ttsClient,
		imageClient:   imageClient,
		mixer:         mixer,
		ossClient:     ossClient,
		cfg:           cfg,
	}
}

// GenerateNarration 合成故事朗读音频。指定了背景音乐时与曲库音乐混音。
// 合成、混音、上传全部成功后才扣星星，中途失败余额不动
func (s *AudioService) GenerateNarration(ctx context.Context, userID, storyID int64, req *dto.GenerateAudioRequest) (*dto.GenerateAudioResponse, error) {
	story, err := s.storyService.getOwnedStory(userID, storyID)
	if err != nil {
		return nil, err
	}

	var musicURL string
	if req.MusicTrack != "" {
		url, ok := s.cfg.Audio.MusicTracks[req.MusicTrack]
		if !ok {
			return nil, ErrMusicTrackNotFound
		}
		musicURL = url
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	var audioURL string
	err = s.creditService.ExecuteThenDebit(user, ActionNarration, func() error {
		voiceAudio, err := s.ttsClient.Synthesize(ctx, story.Text, req.Voice)
		if err != nil {
			log.Printf("TTS synthesis failed for story %d: %v", storyID, err)
			return ErrAudioGeneration
		}

		finalAudio := voiceAudio
		if musicURL != "" {
			mixed, err := s.mixer.Mix(ctx, voiceAudio, musicURL)
			if err != nil {
				log.Printf("Audio mix failed for story %d: %v", storyID, err)
				return err
			}
			finalAudio = mixed
		}

		audioURL, err = s.storeAudio(storyID, finalAudio)
		if err != nil {
			return err
		}

		return s.storyRepo.SetAudioURL(storyID, audioURL)
	})
	if err != nil {
		return nil, err
	}

	balance, err := s.creditService.GetBalance(userID)
	if err != nil {
		return nil, err
	}

	return &dto.GenerateAudioResponse{
		StoryID:  storyID,
		AudioURL: audioURL,
		Balance:  balance,
	}, nil
}

// GenerateCharacterImage 生成角色形象图并转存，成功后扣星星
func (s *AudioService) GenerateCharacterImage(ctx context.Context, userID int64, req *dto.GenerateCharacterImageRequest) (*dto.GenerateCharacterImageResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	var imageURL string
	err = s.creditService.ExecuteThenDebit(user, ActionCharacterImage, func() error {
		prompt := fmt.Sprintf("儿童绘本画风的角色形象：%s", req.Description)
		providerURL, err := s.imageClient.Generate(ctx, prompt)
		if err != nil {
			log.Printf("Character image generation failed for user %d: %v", userID, err)
			return ErrImageGeneration
		}

		if s.ossClient == nil {
			// 未配置 OSS 时直接返回上游 URL（本地联调用，上游链接会过期）
			imageURL = providerURL
			return nil
		}

		data, err := s.imageClient.Download(ctx, providerURL)
		if err != nil {
			log.Printf("Character image download failed for user %d: %v", userID, err)
			return ErrImageGeneration
		}

		imageURL, err = s.ossClient.UploadCharacterImage(userID, data)
		return err
	})
	if err != nil {
		return nil, err
	}

	balance, err := s.creditService.GetBalance(userID)
	if err != nil {
		return nil, err
	}

	return &dto.GenerateCharacterImageResponse{
		ImageURL: imageURL,
		Balance:  balance,
	}, nil
}

// storeAudio 音频落存储。未配置 OSS 时落本地临时目录（本地联调用）
func (s *AudioService) storeAudio(storyID int64, data []byte) (string, error) {
	if s.ossClient != nil {
		return s.ossClient.UploadStoryAudio(storyID, data)
	}

	dir := s.cfg.Audio.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	localDir := filepath.Join(dir, "audio")
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create local audio dir: %w", err)
	}

	localPath := filepath.Join(localDir, fmt.Sprintf("%d.mp3", storyID))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write local audio: %w", err)
	}
	return "local://" + localPath, nil
}
