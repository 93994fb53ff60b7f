package settlement

import (
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the settlement engine and the
// reconciliation service.
type Repository interface {
	CreatePaymentIfNotExists(payment *models.Payment) (bool, *models.Payment, error)
	GetPaymentByID(id uint) (*models.Payment, error)
	ListUnprocessedPayments(limit int) ([]models.Payment, error)
	CountCommissionsByPaymentID(paymentID uint) (int64, error)
	SettlePayment(payment *models.Payment, commissions []models.Commission) error
	MarkPaymentProcessed(paymentID uint, generated int) error
	SetPaymentError(paymentID uint, message string) error
	UpdatePaymentBinding(paymentID uint, subscriptionID *uint, planID uint) error

	GetAffiliate(id uint) (*models.Affiliate, error)
	ListReferralEdges() ([]models.SubAffiliate, error)
	GetPlanCommissionLevels(planID uint) ([]models.PlanCommissionLevel, error)
	GetSubscriptionByExternalID(externalID string) (*models.Subscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a settlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePaymentIfNotExists(payment *models.Payment) (bool, *models.Payment, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_payment_id"},
		},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Payment
	if err := r.db.Where("external_payment_id = ?", payment.ExternalPaymentID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetPaymentByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) ListUnprocessedPayments(limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("commission_processed = ? AND amount_cents > 0", false).
		Order("payment_date ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *gormRepository) CountCommissionsByPaymentID(paymentID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Commission{}).Where("payment_id = ?", paymentID).Count(&count).Error
	return count, err
}

// SettlePayment inserts the commission set and flips the processed flag in a
// single transaction, so one payment's settlement is all-or-nothing.
func (r *gormRepository) SettlePayment(payment *models.Payment, commissions []models.Commission) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if len(commissions) > 0 {
			if err := tx.Create(&commissions).Error; err != nil {
				return err
			}
		}
		now := time.Now()
		return tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
			"commission_processed":    true,
			"commission_processed_at": &now,
			"commission_error":        "",
			"commissions_generated":   len(commissions),
		}).Error
	})
}

func (r *gormRepository) MarkPaymentProcessed(paymentID uint, generated int) error {
	now := time.Now()
	return r.db.Model(&models.Payment{}).Where("id = ?", paymentID).Updates(map[string]interface{}{
		"commission_processed":    true,
		"commission_processed_at": &now,
		"commission_error":        "",
		"commissions_generated":   generated,
	}).Error
}

func (r *gormRepository) UpdatePaymentBinding(paymentID uint, subscriptionID *uint, planID uint) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", paymentID).Updates(map[string]interface{}{
		"subscription_id": subscriptionID,
		"plan_id":         planID,
	}).Error
}

func (r *gormRepository) SetPaymentError(paymentID uint, message string) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", paymentID).Updates(map[string]interface{}{
		"commission_processed": false,
		"commission_error":     message,
	}).Error
}

func (r *gormRepository) GetAffiliate(id uint) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	if err := r.db.First(&affiliate, id).Error; err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *gormRepository) ListReferralEdges() ([]models.SubAffiliate, error) {
	var edges []models.SubAffiliate
	err := r.db.Find(&edges).Error
	return edges, err
}

func (r *gormRepository) GetPlanCommissionLevels(planID uint) ([]models.PlanCommissionLevel, error) {
	var levels []models.PlanCommissionLevel
	err := r.db.Where("plan_id = ?", planID).Order("level ASC").Find(&levels).Error
	return levels, err
}

func (r *gormRepository) GetSubscriptionByExternalID(externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("external_subscription_id = ?", externalID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
