package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/audio"
	"github.com/moonfable/tale_go_server/internal/pkg/provider"
	"github.com/moonfable/tale_go_server/internal/repository"
	"github.com/moonfable/tale_go_server/internal/testutil"
)

type audioServiceEnv struct {
	svc       *AudioService
	userRepo  *repository.UserRepository
	storyRepo *repository.StoryRepository
	db        *gorm.DB
}

func setupAudioService(t *testing.T, ttsURL, imageURL string) *audioServiceEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	userRepo := repository.NewUserRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	jobRepo := repository.NewJobRepository(db)

	cfg := &config.Config{}
	cfg.Audio.TempDir = t.TempDir()
	cfg.Audio.MusicTracks = map[string]string{"lullaby": "http://music.invalid/lullaby.mp3"}

	creditService := NewCreditService(userRepo, cfg)
	storyService := NewStoryService(storyRepo, jobRepo, userRepo, creditService, nil, nil, nil, nil, cfg)

	ttsKey := ""
	if ttsURL != "" {
		ttsKey = "test-key"
	}
	ttsClient := provider.NewTTSClient(&config.TTSProviderConfig{
		BaseURL: ttsURL,
		APIKey:  ttsKey,
		Model:   "test-tts",
		Voice:   "warm",
	})

	imageKey := ""
	if imageURL != "" {
		imageKey = "test-key"
	}
	imageClient := provider.NewImageClient(&config.ImageProviderConfig{
		BaseURL: imageURL,
		APIKey:  imageKey,
		Model:   "test-image",
	})

	mixer := audio.NewMixer(&cfg.Audio)

	svc := NewAudioService(storyRepo, userRepo, creditService, storyService, ttsClient, imageClient, mixer, nil, cfg)

	return &audioServiceEnv{
		svc:       svc,
		userRepo:  userRepo,
		storyRepo: storyRepo,
		db:        db,
	}
}

// fakeTTSProvider 返回固定音频字节的假 TTS 服务
func fakeTTSProvider(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-mp3-bytes"))
	}))
}

func TestAudioService_GenerateNarration_DebitsAfterSuccess(t *testing.T) {
	srv := fakeTTSProvider(t)
	defer srv.Close()
	env := setupAudioService(t, srv.URL, "")

	user := testutil.TestUser(t, env.db, testutil.WithCredits(3))
	story := testutil.TestStory(t, env.db, user.ID)

	resp, err := env.svc.GenerateNarration(context.Background(), user.ID, story.ID, &dto.GenerateAudioRequest{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.AudioURL, "local://"))
	assert.Equal(t, 2, resp.Balance.StoryCredits)

	// 故事上挂了音频地址
	fresh, err := env.storyRepo.GetByID(story.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.AudioURL, fresh.AudioURL)
}

func TestAudioService_GenerateNarration_NoDebitOnTTSFailure(t *testing.T) {
	srv := fakeTTSProvider(t)
	srv.Close() // TTS 挂掉
	env := setupAudioService(t, srv.URL, "")

	user := testutil.TestUser(t, env.db, testutil.WithCredits(3))
	story := testutil.TestStory(t, env.db, user.ID)

	_, err := env.svc.GenerateNarration(context.Background(), user.ID, story.ID, &dto.GenerateAudioRequest{})
	assert.ErrorIs(t, err, ErrAudioGeneration)

	// 合成失败余额不动
	fresh, ferr := env.userRepo.GetByID(user.ID)
	require.NoError(t, ferr)
	assert.Equal(t, 3, fresh.StoryCredits)
}

func TestAudioService_GenerateNarration_UnknownMusicTrack(t *testing.T) {
	env := setupAudioService(t, "", "")

	user := testutil.TestUser(t, env.db, testutil.WithCredits(3))
	story := testutil.TestStory(t, env.db, user.ID)

	_, err := env.svc.GenerateNarration(context.Background(), user.ID, story.ID, &dto.GenerateAudioRequest{
		MusicTrack: "不存在的曲子",
	})
	assert.ErrorIs(t, err, ErrMusicTrackNotFound)
}

func TestAudioService_GenerateNarration_InsufficientCredits(t *testing.T) {
	env := setupAudioService(t, "", "")

	user := testutil.TestUser(t, env.db, testutil.WithCredits(0))
	story := testutil.TestStory(t, env.db, user.ID)

	_, err := env.svc.GenerateNarration(context.Background(), user.ID, story.ID, &dto.GenerateAudioRequest{})
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestAudioService_GenerateNarration_NotOwner(t *testing.T) {
	env := setupAudioService(t, "", "")

	owner := testutil.TestUser(t, env.db)
	other := testutil.TestUser(t, env.db, testutil.WithCredits(3))
	story := testutil.TestStory(t, env.db, owner.ID)

	_, err := env.svc.GenerateNarration(context.Background(), other.ID, story.ID, &dto.GenerateAudioRequest{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestAudioService_GenerateCharacterImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"url": "http://img.invalid/char.png"}},
		})
	}))
	defer srv.Close()
	env := setupAudioService(t, "", srv.URL)

	user := testutil.TestUser(t, env.db, testutil.WithCredits(3))

	resp, err := env.svc.GenerateCharacterImage(context.Background(), user.ID, &dto.GenerateCharacterImageRequest{
		Description: "戴红色围巾的小狐狸",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://img.invalid/char.png", resp.ImageURL)
	assert.Equal(t, 2, resp.Balance.StoryCredits)
}

func TestAudioService_GenerateCharacterImage_NoDebitOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	env := setupAudioService(t, "", srv.URL)

	user := testutil.TestUser(t, env.db, testutil.WithCredits(3))

	_, err := env.svc.GenerateCharacterImage(context.Background(), user.ID, &dto.GenerateCharacterImageRequest{
		Description: "戴红色围巾的小狐狸",
	})
	assert.ErrorIs(t, err, ErrImageGeneration)

	fresh, ferr := env.userRepo.GetByID(user.ID)
	require.NoError(t, ferr)
	assert.Equal(t, 3, fresh.StoryCredits)
}
