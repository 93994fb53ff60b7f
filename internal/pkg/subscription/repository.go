package subscription

import (
	"github.com/afiliapay/AfiliaPay/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the subscription service.
type Repository interface {
	GetByExternalID(externalID string) (*models.Subscription, error)
	Create(sub *models.Subscription) error
	Save(sub *models.Subscription) error
	FindActivePriceMapping(externalPriceID, environment string) (*models.PlanPriceMapping, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByExternalID(externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("external_subscription_id = ?", externalID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) Save(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) FindActivePriceMapping(externalPriceID, environment string) (*models.PlanPriceMapping, error) {
	var m models.PlanPriceMapping
	err := r.db.
		Where("external_price_id = ? AND environment = ? AND is_active = ?", externalPriceID, environment, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
