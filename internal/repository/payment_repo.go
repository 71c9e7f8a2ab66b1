package repository

import (
	"gorm.io/gorm"

	"github.com/moonfable/tale_go_server/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create 插入支付流水（contract_id 唯一索引兜底防重）
func (r *PaymentRepository) Create(payment *model.Payment) error {
	return r.db.Create(payment).Error
}

func (r *PaymentRepository) GetByContractID(contractID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.Where("contract_id = ?", contractID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ExistsByContractID 幂等判断：同一 contract_id 的事件只处理一次
func (r *PaymentRepository) ExistsByContractID(contractID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Payment{}).Where("contract_id = ?", contractID).Count(&count).Error
	return count > 0, err
}

func (r *PaymentRepository) ListByEmail(email string, page, pageSize int) ([]*model.Payment, int64, error) {
	query := r.db.Model(&model.Payment{}).Where("email = ?", email)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []*model.Payment
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}
