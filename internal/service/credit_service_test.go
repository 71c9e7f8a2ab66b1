package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model"
	"github.com/moonfable/tale_go_server/internal/repository"
	"github.com/moonfable/tale_go_server/internal/testutil"
)

func setupCreditService(t *testing.T) (*CreditService, *repository.UserRepository, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	userRepo := repository.NewUserRepository(db)
	return NewCreditService(userRepo, &config.Config{}), userRepo, db
}

func TestCreditService_Check_SufficientCredits(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(5))

	cost, err := svc.Check(user, ActionNarration)
	require.NoError(t, err)
	assert.Equal(t, 1, cost)
}

func TestCreditService_Check_InsufficientCredits(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(0))

	_, err := svc.Check(user, ActionNarration)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestCreditService_Check_CartoonCostsFive(t *testing.T) {
	svc, _, db := setupCreditService(t)

	// 4 颗星不够请求动画
	user := testutil.TestUser(t, db, testutil.WithCredits(4))
	_, err := svc.Check(user, ActionCartoonRequest)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	// 5 颗刚好
	user = testutil.TestUser(t, db, testutil.WithCredits(5))
	cost, err := svc.Check(user, ActionCartoonRequest)
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
}

func TestCreditService_Check_AdminBypassesCredits(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(0), testutil.WithAdmin())

	cost, err := svc.Check(user, ActionCartoonRequest)
	require.NoError(t, err)
	assert.Equal(t, 0, cost)
}

func TestCreditService_Check_StoryRequiresSubscription(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithoutSubscription())

	_, err := svc.Check(user, ActionStoryGeneration)
	assert.ErrorIs(t, err, ErrSubscriptionRequired)
}

func TestCreditService_Check_ExpiredSubscription(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db,
		testutil.WithSubscription(model.SubscriptionMonthly, time.Now().Add(-time.Hour)))

	_, err := svc.Check(user, ActionStoryGeneration)
	assert.ErrorIs(t, err, ErrSubscriptionRequired)
}

func TestCreditService_Check_AdminStillNeedsSubscription(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithAdmin(), testutil.WithoutSubscription())

	// 管理员免扣费，但故事生成的订阅门槛不豁免
	_, err := svc.Check(user, ActionStoryGeneration)
	assert.ErrorIs(t, err, ErrSubscriptionRequired)
}

func TestCreditService_Check_FreeTrialLimit(t *testing.T) {
	svc, _, db := setupCreditService(t)

	// 已用 2 篇还能生成
	user := testutil.TestUser(t, db, testutil.WithFreeTrialUsed(2))
	_, err := svc.Check(user, ActionStoryGeneration)
	assert.NoError(t, err)

	// 已用 3 篇则拒绝
	user = testutil.TestUser(t, db, testutil.WithFreeTrialUsed(3))
	_, err = svc.Check(user, ActionStoryGeneration)
	assert.ErrorIs(t, err, ErrFreeTrialLimit)
}

func TestCreditService_Check_PaidSubscriptionNoStoryLimit(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db,
		testutil.WithSubscription(model.SubscriptionMonthly, time.Now().Add(30*24*time.Hour)),
		testutil.WithFreeTrialUsed(100))

	// 付费订阅不受试用篇数限制
	_, err := svc.Check(user, ActionStoryGeneration)
	assert.NoError(t, err)
}

func TestCreditService_ExecuteThenDebit_DebitsAfterSuccess(t *testing.T) {
	svc, userRepo, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(10))

	executed := false
	err := svc.ExecuteThenDebit(user, ActionNarration, func() error {
		executed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, executed)

	fresh, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, fresh.StoryCredits)
}

func TestCreditService_ExecuteThenDebit_NoDebitOnFailure(t *testing.T) {
	svc, userRepo, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(10))

	wantErr := errors.New("上游挂了")
	err := svc.ExecuteThenDebit(user, ActionNarration, func() error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	fresh, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, fresh.StoryCredits)
}

func TestCreditService_ExecuteThenDebit_RejectsBeforeSideEffect(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(0))

	executed := false
	err := svc.ExecuteThenDebit(user, ActionNarration, func() error {
		executed = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.False(t, executed)
}

func TestCreditService_ExecuteThenDebit_AdminNoDebit(t *testing.T) {
	svc, userRepo, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(10), testutil.WithAdmin())

	err := svc.ExecuteThenDebit(user, ActionNarration, func() error { return nil })
	require.NoError(t, err)

	fresh, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, fresh.StoryCredits)
}

func TestCreditService_DebitThenExecute_RefundsOnFailure(t *testing.T) {
	svc, userRepo, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(10))

	wantErr := errors.New("任务创建失败")
	err := svc.DebitThenExecute(user, ActionCartoonRequest, func() error {
		// 副作用执行时应该已经扣掉 5 颗
		fresh, ferr := userRepo.GetByID(user.ID)
		require.NoError(t, ferr)
		assert.Equal(t, 5, fresh.StoryCredits)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// 失败后退回原余额
	fresh, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, fresh.StoryCredits)
}

func TestCreditService_DebitThenExecute_KeepsDebitOnSuccess(t *testing.T) {
	svc, userRepo, db := setupCreditService(t)
	user := testutil.TestUser(t, db, testutil.WithCredits(10))

	err := svc.DebitThenExecute(user, ActionCartoonRequest, func() error { return nil })
	require.NoError(t, err)

	fresh, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh.StoryCredits)
}

func TestCreditService_DebitThenExecute_NeverGoesNegative(t *testing.T) {
	svc, userRepo, db := setupCreditService(t)
	// 快照够但数据库里被并发扣到只剩 3 颗
	user := testutil.TestUser(t, db, testutil.WithCredits(10))
	_, err := userRepo.DebitStoryCredits(user.ID, 7)
	require.NoError(t, err)

	executed := false
	err = svc.DebitThenExecute(user, ActionCartoonRequest, func() error {
		executed = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.False(t, executed)

	fresh, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.StoryCredits)
}

func TestCreditService_BuildBalance(t *testing.T) {
	svc, _, db := setupCreditService(t)
	user := testutil.TestUser(t, db,
		testutil.WithCredits(7),
		testutil.WithCartoonCredits(2),
		testutil.WithFreeTrialUsed(3))

	balance := svc.BuildBalance(user)
	assert.Equal(t, 7, balance.StoryCredits)
	assert.Equal(t, 2, balance.CartoonCredits)
	assert.True(t, balance.IsFreeTrial)
	assert.True(t, balance.HasActiveSubscription)
	assert.Equal(t, 3, balance.FreeTrialStoriesUsed)
	// 订阅还在有效期，但 3 篇已用完
	assert.True(t, balance.FreeTrialExpired)
}

func TestCreditService_Cost_ConfigOverride(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	userRepo := repository.NewUserRepository(db)
	cfg := &config.Config{}
	cfg.Credits.CartoonCost = 8
	svc := NewCreditService(userRepo, cfg)

	assert.Equal(t, 8, svc.Cost(ActionCartoonRequest))
	assert.Equal(t, 1, svc.Cost(ActionNarration))
}
