package withdrawal

import (
	"fmt"
	"time"

	"github.com/afiliapay/AfiliaPay/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the withdrawal manager. The
// transactional composites keep every lifecycle transition all-or-nothing
// across the withdrawal row and its reserved commissions.
type Repository interface {
	GetByID(id uint) (*models.Withdrawal, error)
	ListByAffiliate(affiliateID uint, offset, limit int) ([]models.Withdrawal, error)
	List(offset, limit int) ([]models.Withdrawal, error)
	ListReservedCommissions(withdrawalID uint) ([]models.Commission, error)

	CreateReserving(w *models.Withdrawal, commissionIDs []uint, now time.Time) error
	Save(w *models.Withdrawal) error
	SavePaid(w *models.Withdrawal) error
	SaveRejected(w *models.Withdrawal) error
	SaveReverted(w *models.Withdrawal) error
}

// ErrReservationConflict is returned when one or more requested commissions
// could not be reserved: not owned, not matured, or already locked to
// another withdrawal.
var ErrReservationConflict = fmt.Errorf("commission reservation conflict")

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a withdrawal repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByID(id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *gormRepository) ListByAffiliate(affiliateID uint, offset, limit int) ([]models.Withdrawal, error) {
	var ws []models.Withdrawal
	err := r.db.Where("affiliate_id = ?", affiliateID).
		Order("requested_at DESC").Offset(offset).Limit(limit).Find(&ws).Error
	return ws, err
}

func (r *gormRepository) List(offset, limit int) ([]models.Withdrawal, error) {
	var ws []models.Withdrawal
	err := r.db.Order("requested_at DESC").Offset(offset).Limit(limit).Find(&ws).Error
	return ws, err
}

func (r *gormRepository) ListReservedCommissions(withdrawalID uint) ([]models.Commission, error) {
	var cs []models.Commission
	err := r.db.Where("withdrawal_id = ?", withdrawalID).Find(&cs).Error
	return cs, err
}

// CreateReserving creates the withdrawal and atomically locks the requested
// commissions to it. The guarded UPDATE is the exclusivity point: a
// commission already reserved, not matured, or not owned by the affiliate
// does not match the WHERE clause, the row count comes up short and the
// whole transaction rolls back. The total and the final validation happen
// inside the same transaction, so a rejected request leaves no withdrawal
// row and no reservations behind.
func (r *gormRepository) CreateReserving(w *models.Withdrawal, commissionIDs []uint, now time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(w).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Commission{}).
			Where("id IN ? AND affiliate_id = ? AND status = ? AND available_date <= ? AND withdrawal_id IS NULL",
				commissionIDs, w.AffiliateID, models.CommissionStatusPending, now).
			Update("withdrawal_id", w.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(commissionIDs)) {
			return ErrReservationConflict
		}

		var total int64
		if err := tx.Model(&models.Commission{}).
			Where("withdrawal_id = ?", w.ID).
			Select("COALESCE(SUM(amount_cents), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		w.AmountCents = total
		if err := w.Validate(); err != nil {
			return err
		}
		return tx.Model(w).Update("amount_cents", total).Error
	})
}

func (r *gormRepository) Save(w *models.Withdrawal) error {
	return r.db.Save(w).Error
}

// SavePaid persists the paid transition and flips the reserved commissions
// to withdrawn in the same transaction.
func (r *gormRepository) SavePaid(w *models.Withdrawal) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(w).Error; err != nil {
			return err
		}
		return tx.Model(&models.Commission{}).
			Where("withdrawal_id = ?", w.ID).
			Update("status", models.CommissionStatusWithdrawn).Error
	})
}

// SaveRejected persists the rejection and releases the reserved commissions
// back to the available pool.
func (r *gormRepository) SaveRejected(w *models.Withdrawal) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(w).Error; err != nil {
			return err
		}
		return tx.Model(&models.Commission{}).
			Where("withdrawal_id = ?", w.ID).
			Update("withdrawal_id", nil).Error
	})
}

// SaveReverted persists the paid->approved correction and undoes the
// commission status change made at paid time, keeping the reservation.
func (r *gormRepository) SaveReverted(w *models.Withdrawal) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(w).Error; err != nil {
			return err
		}
		return tx.Model(&models.Commission{}).
			Where("withdrawal_id = ?", w.ID).
			Update("status", models.CommissionStatusPending).Error
	})
}
