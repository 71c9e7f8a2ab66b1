package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/repository"
	"github.com/moonfable/tale_go_server/internal/testutil"
)

func setupAuthService(t *testing.T, mode string) (*AuthService, *repository.UserRepository, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	userRepo := repository.NewUserRepository(db)
	cfg := &config.Config{}
	cfg.Server.Mode = mode
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireHours = 24

	creditService := NewCreditService(userRepo, cfg)
	svc := NewAuthService(userRepo, creditService, nil, cfg)
	return svc, userRepo, db
}

func TestAuthService_Register_StartsFreeTrial(t *testing.T) {
	svc, userRepo, _ := setupAuthService(t, "debug")

	resp, err := svc.Register(&dto.RegisterRequest{
		Username: "newparent",
		Email:    "parent@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	user, err := userRepo.GetByID(resp.UserID)
	require.NoError(t, err)

	// 注册即开通 7 天试用订阅
	require.NotNil(t, user.SubscriptionType)
	assert.Equal(t, model.SubscriptionFreeTrial, *user.SubscriptionType)
	require.NotNil(t, user.SubscriptionUntil)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *user.SubscriptionUntil, time.Minute)
	assert.Equal(t, 0, user.FreeTrialStoriesUsed)
	assert.Equal(t, 0, user.StoryCredits)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, _, db := setupAuthService(t, "debug")
	testutil.TestUser(t, db, testutil.WithEmail("taken@example.com"))

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "someone",
		Email:    "taken@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	svc, _, db := setupAuthService(t, "debug")
	testutil.TestUser(t, db, testutil.WithUsername("taken"))

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "taken",
		Email:    "fresh@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, _, _ := setupAuthService(t, "debug")

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "loginuser",
		Email:    "login@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	resp, err := svc.Login(&dto.LoginRequest{
		Email:    "login@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "loginuser", resp.User.Username)
	require.NotNil(t, resp.User.Balance)
	assert.True(t, resp.User.Balance.IsFreeTrial)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, _, _ := setupAuthService(t, "debug")

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "wrongpw",
		Email:    "wrongpw@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Login(&dto.LoginRequest{
		Email:    "wrongpw@example.com",
		Password: "not-the-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	svc, _, _ := setupAuthService(t, "debug")

	_, err := svc.Login(&dto.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnverifiedEmailInRelease(t *testing.T) {
	svc, _, _ := setupAuthService(t, "release")

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "unverified",
		Email:    "unverified@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.Login(&dto.LoginRequest{
		Email:    "unverified@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestAuthService_VerifyEmail(t *testing.T) {
	svc, userRepo, _ := setupAuthService(t, "release")

	resp, err := svc.Register(&dto.RegisterRequest{
		Username: "verifyme",
		Email:    "verifyme@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	user, err := userRepo.GetByID(resp.UserID)
	require.NoError(t, err)
	require.NotNil(t, user.VerificationCode)

	loginResp, err := svc.VerifyEmail(*user.VerificationCode)
	require.NoError(t, err)
	assert.NotEmpty(t, loginResp.Token)

	fresh, err := userRepo.GetByID(resp.UserID)
	require.NoError(t, err)
	assert.True(t, fresh.EmailVerified)
	assert.Nil(t, fresh.VerificationCode)
}

func TestAuthService_VerifyEmail_InvalidCode(t *testing.T) {
	svc, _, _ := setupAuthService(t, "release")

	_, err := svc.VerifyEmail("no-such-code")
	assert.ErrorIs(t, err, ErrInvalidVerifyCode)
}
