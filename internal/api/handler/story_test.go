package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/pubsub"
	"github.com/moonfable/tale_go_server/internal/pkg/queue"
	"github.com/moonfable/tale_go_server/internal/pkg/response"
	"github.com/moonfable/tale_go_server/internal/repository"
	"github.com/moonfable/tale_go_server/internal/service"
	"github.com/moonfable/tale_go_server/internal/testutil"
)

// setupStoryRouter 返回以 userID 身份访问故事接口的路由
func setupStoryRouter(t *testing.T, userID int64, db *gorm.DB) *gin.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	userRepo := repository.NewUserRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	jobRepo := repository.NewJobRepository(db)

	cfg := &config.Config{}
	creditService := service.NewCreditService(userRepo, cfg)
	storyService := service.NewStoryService(
		storyRepo, jobRepo, userRepo, creditService,
		nil, queue.NewQueue(rdb, "cartoon_jobs_test"), pubsub.NewPublisher(rdb), nil, cfg)
	handler := NewStoryHandler(storyService, creditService)

	router := gin.New()
	router.Use(fakeAuth(userID))
	router.POST("/stories", handler.Generate)
	router.GET("/stories/:id", handler.Get)
	router.POST("/stories/:id/cartoon", handler.RequestCartoon)
	router.GET("/stories/:id/cartoon", handler.GetCartoonStatus)
	return router
}

func TestStoryHandler_Generate_NoSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	user := testutil.TestUser(t, db, testutil.WithoutSubscription())
	router := setupStoryRouter(t, user.ID, db)

	w := performRequest(router, "POST", "/stories", dto.GenerateStoryRequest{
		ChildName: "小明",
		ChildAge:  5,
		Topic:     "月亮",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, response.CodeSubscriptionRequired, resp.Code)
}

func TestStoryHandler_Generate_FreeTrialExhausted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	user := testutil.TestUser(t, db, testutil.WithFreeTrialUsed(3))
	router := setupStoryRouter(t, user.ID, db)

	w := performRequest(router, "POST", "/stories", dto.GenerateStoryRequest{
		ChildName: "小明",
		ChildAge:  5,
		Topic:     "月亮",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, response.CodeFreeTrialLimit, resp.Code)
}

func TestStoryHandler_RequestCartoon_InsufficientCredits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	user := testutil.TestUser(t, db, testutil.WithCredits(2))
	story := testutil.TestStory(t, db, user.ID)
	router := setupStoryRouter(t, user.ID, db)

	w := performRequest(router, "POST", fmt.Sprintf("/stories/%d/cartoon", story.ID), nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, response.CodeInsufficientCredits, resp.Code)

	// 附带 required/current，前端据此引导购买
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), data["required"])
	assert.Equal(t, float64(2), data["current"])
}

func TestStoryHandler_RequestCartoon_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	user := testutil.TestUser(t, db, testutil.WithCredits(20))
	story := testutil.TestStory(t, db, user.ID)
	router := setupStoryRouter(t, user.ID, db)

	path := fmt.Sprintf("/stories/%d/cartoon", story.ID)
	w := performRequest(router, "POST", path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, "POST", path, nil)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.CodeDuplicateAction, resp.Code)
}

func TestStoryHandler_Get_NotOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	owner := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	story := testutil.TestStory(t, db, owner.ID)
	router := setupStoryRouter(t, other.ID, db)

	w := performRequest(router, "GET", fmt.Sprintf("/stories/%d", story.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStoryHandler_Get_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	user := testutil.TestUser(t, db)
	router := setupStoryRouter(t, user.ID, db)

	w := performRequest(router, "GET", "/stories/99999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoryHandler_Get_InvalidID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	user := testutil.TestUser(t, db)
	router := setupStoryRouter(t, user.ID, db)

	w := performRequest(router, "GET", "/stories/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
