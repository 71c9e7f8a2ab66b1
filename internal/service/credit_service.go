package service

import (
	"errors"
	"log"
	"time"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/repository"
)

var (
	ErrInsufficientCredits  = errors.New("星星余额不足")
	ErrSubscriptionRequired = errors.New("订阅后才能生成故事")
	ErrFreeTrialLimit       = errors.New("试用故事次数已用完")
	ErrPersistence          = errors.New("数据保存失败，请稍后重试")
)

// Action 计费动作类型
type Action int

const (
	ActionNarration Action = iota // 朗读音频生成
	ActionCharacterImage          // 角色形象生成
	ActionCartoonRequest          // 故事动画请求
	ActionStoryGeneration         // 故事文本生成（订阅内免费）
)

const (
	defaultNarrationCost      = 1
	defaultCharacterImageCost = 1
	// 动画请求从星星池扣费（沿用线上行为）。购买发放的动画券是独立余额，
	// 当前没有消费路径，星/券两池是否合并待产品确认
	defaultCartoonCost      = 5
	defaultFreeTrialStories = 3
)

type CreditService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewCreditService(userRepo *repository.UserRepository, cfg *config.Config) *CreditService {
	return &CreditService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// Cost 动作对应的星星消耗
func (s *CreditService) Cost(action Action) int {
	switch action {
	case ActionNarration:
		if s.cfg.Credits.NarrationCost > 0 {
			return s.cfg.Credits.NarrationCost
		}
		return defaultNarrationCost
	case ActionCharacterImage:
		if s.cfg.Credits.CharacterImageCost > 0 {
			return s.cfg.Credits.CharacterImageCost
		}
		return defaultCharacterImageCost
	case ActionCartoonRequest:
		if s.cfg.Credits.CartoonCost > 0 {
			return s.cfg.Credits.CartoonCost
		}
		return defaultCartoonCost
	default:
		return 0
	}
}

// FreeTrialLimit 试用订阅可生成的故事数
func (s *CreditService) FreeTrialLimit() int {
	if s.cfg.Credits.FreeTrialStories > 0 {
		return s.cfg.Credits.FreeTrialStories
	}
	return defaultFreeTrialStories
}

// Check 纯判定：根据余额快照和动作类型决定允许与否及消耗。
// 管理员跳过所有星星校验和扣减，但故事生成的订阅门槛对管理员同样生效
func (s *CreditService) Check(user *model.User, action Action) (int, error) {
	switch action {
	case ActionStoryGeneration:
		if !user.HasActiveSubscription() {
			return 0, ErrSubscriptionRequired
		}
		if user.IsFreeTrial() && user.FreeTrialStoriesUsed >= s.FreeTrialLimit() {
			return 0, ErrFreeTrialLimit
		}
		return 0, nil
	default:
		cost := s.Cost(action)
		if user.IsAdmin {
			return 0, nil
		}
		if user.StoryCredits < cost {
			return cost, ErrInsufficientCredits
		}
		return cost, nil
	}
}

// ExecuteThenDebit 先执行副作用、成功后才扣费：副作用失败余额不动。
// 扣费用条件更新做二次校验，并发下也不会把余额扣成负数
func (s *CreditService) ExecuteThenDebit(user *model.User, action Action, sideEffect func() error) error {
	cost, err := s.Check(user, action)
	if err != nil {
		return err
	}

	if err := sideEffect(); err != nil {
		return err
	}

	if cost > 0 {
		applied, err := s.userRepo.DebitStoryCredits(user.ID, cost)
		if err != nil {
			return ErrPersistence
		}
		if !applied {
			// 并发请求把余额花完了，副作用已完成，只能放行并记日志
			log.Printf("Credit debit after success missed for user %d, action %d: balance drained concurrently", user.ID, int(action))
		}
	}

	return nil
}

// DebitThenExecute 先扣费再执行副作用：副作用失败时退还已扣的星星（补偿事务）。
// 退款写失败不吞掉——记日志后仍返回主错误，这是真实的财务差异
func (s *CreditService) DebitThenExecute(user *model.User, action Action, sideEffect func() error) error {
	cost, err := s.Check(user, action)
	if err != nil {
		return err
	}

	if cost > 0 {
		applied, err := s.userRepo.DebitStoryCredits(user.ID, cost)
		if err != nil {
			return ErrPersistence
		}
		if !applied {
			return ErrInsufficientCredits
		}
	}

	if err := sideEffect(); err != nil {
		if cost > 0 {
			if rerr := s.userRepo.AddStoryCredits(user.ID, cost); rerr != nil {
				log.Printf("WARNING: refund of %d credits failed for user %d: %v", cost, user.ID, rerr)
			}
		}
		return err
	}

	return nil
}

// GetBalance 查询余额信息
func (s *CreditService) GetBalance(userID int64) (*dto.BalanceInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return s.BuildBalance(user), nil
}

// BuildBalance 由用户快照构造余额信息
func (s *CreditService) BuildBalance(user *model.User) *dto.BalanceInfo {
	info := &dto.BalanceInfo{
		StoryCredits:          user.StoryCredits,
		CartoonCredits:        user.CartoonCredits,
		IsAdmin:               user.IsAdmin,
		HasActiveSubscription: user.HasActiveSubscription(),
		IsFreeTrial:           user.IsFreeTrial(),
		FreeTrialStoriesUsed:  user.FreeTrialStoriesUsed,
	}

	if user.SubscriptionType != nil {
		info.SubscriptionType = *user.SubscriptionType
	}
	if user.SubscriptionUntil != nil {
		info.SubscriptionUntil = user.SubscriptionUntil.Format(time.RFC3339)
	}
	if user.IsFreeTrial() {
		info.FreeTrialExpired = !user.HasActiveSubscription() ||
			user.FreeTrialStoriesUsed >= s.FreeTrialLimit()
	}

	return info
}
