package model

import (
	"time"
)

// 支付记录状态 / 类型
const (
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"

	PaymentTypeSubscription = "subscription"
	PaymentTypeCartoon      = "cartoon"
)

// Payment 支付流水，按 contract_id 去重的幂等标记，只插入不更新
type Payment struct {
	ID                  int64     `gorm:"primaryKey" json:"id"`
	ContractID          string    `gorm:"size:128;uniqueIndex;not null" json:"contract_id"`
	ParentContractID    string    `gorm:"size:128" json:"parent_contract_id,omitempty"`
	Email               string    `gorm:"size:100;index" json:"email"`
	Amount              float64   `gorm:"type:decimal(10,2)" json:"amount"`
	Currency            string    `gorm:"size:8" json:"currency"`
	CreditsAdded        int       `gorm:"default:0" json:"credits_added"`
	CartoonCreditsAdded int       `gorm:"default:0" json:"cartoon_credits_added"`
	PaymentType         string    `gorm:"size:20" json:"payment_type"` // subscription, cartoon
	Status              string    `gorm:"size:20;index" json:"status"` // success, failed
	EventType           string    `gorm:"size:64" json:"event_type"`
	ErrorMessage        string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt           time.Time `gorm:"index" json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}
