package models

import "time"

const (
	CommissionStatusPending   = "pending"
	CommissionStatusAvailable = "available"
	CommissionStatusWithdrawn = "withdrawn"
	CommissionStatusCancelled = "cancelled"
)

const (
	CommissionTypeSubscription = "subscription"
	CommissionTypeOrder        = "order"
)

// Commission is one per-level payout derived from a settled payment. Rows are
// created only by the settlement engine or the reconciliation service.
//
// The pending->available promotion is never stored: it is a pure function of
// time over AvailableDate (see EffectiveStatus), so reads cannot drift from a
// missed scheduled transition.
type Commission struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AffiliateID    uint      `gorm:"not null;index;uniqueIndex:ux_commissions_payment_level,priority:2" json:"affiliate_id"`
	SubscriptionID *uint     `gorm:"index" json:"subscription_id,omitempty"`
	PaymentID      uint      `gorm:"not null;index;uniqueIndex:ux_commissions_payment_level,priority:1" json:"payment_id"`
	CommissionType string    `gorm:"type:varchar(20);not null;default:'subscription'" json:"commission_type"`
	Level          int       `gorm:"not null;uniqueIndex:ux_commissions_payment_level,priority:3" json:"level"`
	Percentage     float64   `gorm:"type:decimal(5,2);not null" json:"percentage"`
	AmountCents    int64     `gorm:"not null" json:"amount_cents"`
	Status         string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentDate    time.Time `gorm:"type:timestamp;not null;index" json:"payment_date"`
	AvailableDate  time.Time `gorm:"type:timestamp;not null;index" json:"available_date"`
	ReferenceMonth string    `gorm:"type:varchar(7)" json:"reference_month"`
	WithdrawalID   *uint     `gorm:"index" json:"withdrawal_id,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EffectiveStatus derives the externally visible status at a point in time.
// A stored "pending" commission whose maturation window has elapsed reads as
// "available"; withdrawn and cancelled are terminal.
func (c *Commission) EffectiveStatus(now time.Time) string {
	if c.Status != CommissionStatusPending {
		return c.Status
	}
	if !now.Before(c.AvailableDate) {
		return CommissionStatusAvailable
	}
	return CommissionStatusPending
}

// IsAvailable reports whether the commission can be reserved by a withdrawal:
// matured, not cancelled or withdrawn, and not already reserved.
func (c *Commission) IsAvailable(now time.Time) bool {
	return c.EffectiveStatus(now) == CommissionStatusAvailable && c.WithdrawalID == nil
}
