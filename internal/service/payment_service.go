package service

import (
	"errors"
	"log"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/config"
	"github.com/moonfable/tale_go_server/internal/model"
	"github.com/moonfable/tale_go_server/internal/model/dto"
	"github.com/moonfable/tale_go_server/internal/pkg/email"
	"github.com/moonfable/tale_go_server/internal/repository"
)

// grant 单笔支付应发放的额度
type grant struct {
	StoryCredits   int
	CartoonCredits int
	Type           string
	Plan           string
}

// defaultGrants 内置价格表，金额（取整后）→ 发放额度
var defaultGrants = map[int]grant{
	29:  {StoryCredits: 30, CartoonCredits: 1, Type: model.PaymentTypeSubscription, Plan: model.SubscriptionMonthly},
	249: {StoryCredits: 360, CartoonCredits: 1, Type: model.PaymentTypeSubscription, Plan: model.SubscriptionYearly},
	10:  {CartoonCredits: 1, Type: model.PaymentTypeCartoon},
	30:  {CartoonCredits: 4, Type: model.PaymentTypeCartoon},
	80:  {CartoonCredits: 12, Type: model.PaymentTypeCartoon},
}

const cartoonCreditsValidDays = 90

type PaymentService struct {
	userRepo    *repository.UserRepository
	paymentRepo *repository.PaymentRepository
	emailSvc    *email.Service
	cfg         *config.Config
}

func NewPaymentService(
	userRepo *repository.UserRepository,
	paymentRepo *repository.PaymentRepository,
	emailSvc *email.Service,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		emailSvc:    emailSvc,
		cfg:         cfg,
	}
}

// HandleEvent 处理支付平台回调。返回 error 表示处理失败（流水没落库），
// 平台会重试；成功发放过的 contract_id 重复投递时直接确认
func (s *PaymentService) HandleEvent(event *dto.PaymentWebhookEvent) error {
	switch event.EventType {
	case dto.EventPaymentSuccess, dto.EventRecurringSuccess:
		return s.handleSuccess(event)
	case dto.EventPaymentFailed, dto.EventRecurringFailed:
		return s.handleFailure(event)
	case dto.EventSubscriptionCancelled:
		// 取消订阅不回收已有权益，到期自动失效，这里只留痕
		log.Printf("Subscription cancelled: contract=%s email=%s", event.ContractID, event.Buyer.Email)
		return nil
	default:
		log.Printf("Ignoring unknown webhook event type: %s (contract=%s)", event.EventType, event.ContractID)
		return nil
	}
}

// lookupGrant 金额查价格表，配置覆盖内置；查不到按 amount/2 向上取整折算星星
func (s *PaymentService) lookupGrant(amount int) grant {
	for _, g := range s.cfg.Payment.Grants {
		if g.Amount == amount {
			return grant{
				StoryCredits:   g.StoryCredits,
				CartoonCredits: g.CartoonCredits,
				Type:           g.Type,
				Plan:           g.Plan,
			}
		}
	}
	if g, ok := defaultGrants[amount]; ok {
		return g
	}
	return grant{
		StoryCredits: int(math.Ceil(float64(amount) / 2)),
		Type:         model.PaymentTypeSubscription,
	}
}

func (s *PaymentService) handleSuccess(event *dto.PaymentWebhookEvent) error {
	// 金额四舍五入到整数再查表，平台偶尔送 29.0 / 28.999 这类浮点
	amount := int(math.Round(event.Amount))
	g := s.lookupGrant(amount)

	exists, err := s.paymentRepo.ExistsByContractID(event.ContractID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("Duplicate webhook delivery ignored: contract=%s", event.ContractID)
		return nil
	}

	user, err := s.userRepo.GetByEmail(event.Buyer.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// 付款邮箱未注册：先落流水，注册后人工对账补发
		log.Printf("Payment from unregistered email %s: contract=%s amount=%d", event.Buyer.Email, event.ContractID, amount)
		user = nil
	}

	if user != nil {
		if g.StoryCredits > 0 {
			if err := s.userRepo.AddStoryCredits(user.ID, g.StoryCredits); err != nil {
				return err
			}
		}
		if g.CartoonCredits > 0 {
			expireAt := time.Now().AddDate(0, 0, cartoonCreditsValidDays)
			if err := s.userRepo.AddCartoonCredits(user.ID, g.CartoonCredits, expireAt); err != nil {
				return err
			}
		}
		if g.Plan != "" {
			if err := s.grantSubscription(user, g.Plan); err != nil {
				return err
			}
		}
	}

	payment := &model.Payment{
		ContractID:          event.ContractID,
		ParentContractID:    event.ParentContractID,
		Email:               event.Buyer.Email,
		Amount:              event.Amount,
		Currency:            event.Currency,
		CreditsAdded:        g.StoryCredits,
		CartoonCreditsAdded: g.CartoonCredits,
		PaymentType:         g.Type,
		Status:              model.PaymentStatusSuccess,
		EventType:           event.EventType,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return err
	}

	if user != nil && s.emailSvc != nil {
		if err := s.emailSvc.SendPurchaseReceipt(event.Buyer.Email, g.StoryCredits, g.CartoonCredits); err != nil {
			log.Printf("Failed to send purchase receipt to %s: %v", event.Buyer.Email, err)
		}
	}

	return nil
}

// grantSubscription 订阅续期：从当前到期时间和现在的较大者起算，续费不吃亏
func (s *PaymentService) grantSubscription(user *model.User, plan string) error {
	base := time.Now()
	if user.SubscriptionUntil != nil && user.SubscriptionUntil.After(base) && !user.IsFreeTrial() {
		base = *user.SubscriptionUntil
	}

	var until time.Time
	switch plan {
	case model.SubscriptionYearly:
		until = base.AddDate(0, 0, 365)
	default:
		until = base.AddDate(0, 0, 30)
	}

	return s.userRepo.GrantSubscription(user.ID, plan, until)
}

func (s *PaymentService) handleFailure(event *dto.PaymentWebhookEvent) error {
	exists, err := s.paymentRepo.ExistsByContractID(event.ContractID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	payment := &model.Payment{
		ContractID:       event.ContractID,
		ParentContractID: event.ParentContractID,
		Email:            event.Buyer.Email,
		Amount:           event.Amount,
		Currency:         event.Currency,
		Status:           model.PaymentStatusFailed,
		EventType:        event.EventType,
		ErrorMessage:     event.ErrorMessage,
	}
	return s.paymentRepo.Create(payment)
}

// ListByEmail 查询某邮箱的支付流水
func (s *PaymentService) ListByEmail(email string, page, pageSize int) ([]*model.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.paymentRepo.ListByEmail(email, page, pageSize)
}
