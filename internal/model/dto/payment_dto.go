package dto

// 支付平台回调事件类型
const (
	EventPaymentSuccess        = "payment.success"
	EventPaymentFailed         = "payment.failed"
	EventRecurringSuccess      = "subscription.recurring.payment.success"
	EventRecurringFailed       = "subscription.recurring.payment.failed"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// WebhookProduct 商品信息
type WebhookProduct struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// WebhookBuyer 买家信息
type WebhookBuyer struct {
	Email string `json:"email"`
}

// PaymentWebhookEvent 支付平台回调事件
type PaymentWebhookEvent struct {
	EventType        string         `json:"eventType" binding:"required"`
	Product          WebhookProduct `json:"product"`
	ContractID       string         `json:"contractId" binding:"required"`
	ParentContractID string         `json:"parentContractId,omitempty"`
	Buyer            WebhookBuyer   `json:"buyer"`
	Amount           float64        `json:"amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	Timestamp        string         `json:"timestamp"`
	ErrorMessage     string         `json:"errorMessage,omitempty"`
	ClientUTM        string         `json:"clientUtm,omitempty"`
}
