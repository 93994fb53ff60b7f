package models

import "time"

// Payment records one paid (or attempted) invoice observed from the processor.
// ExternalPaymentID is the idempotency key for commission settlement: the same
// payment may be delivered many times but settles at most once.
type Payment struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	ExternalPaymentID string `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_external_id" json:"external_payment_id"`
	SubscriptionID    *uint  `gorm:"index" json:"subscription_id,omitempty"`
	// SubscriptionExternalID keeps the processor's subscription handle even
	// when the invoice arrives before its subscription row exists, so a later
	// settlement retry can still bind the plan.
	SubscriptionExternalID string     `gorm:"type:varchar(191);index" json:"subscription_external_id"`
	AffiliateID            uint       `gorm:"not null;index" json:"affiliate_id"`
	PlanID                 uint       `gorm:"not null;default:0;index" json:"plan_id"`
	AmountCents            int64      `gorm:"not null;default:0" json:"amount_cents"`
	Currency               string     `gorm:"type:varchar(10);not null;default:'brl'" json:"currency"`
	BillingReason          string     `gorm:"type:varchar(50)" json:"billing_reason"`
	PaymentDate            time.Time  `gorm:"type:timestamp;not null;index" json:"payment_date"`
	CommissionProcessed    bool       `gorm:"default:false;index" json:"commission_processed"`
	CommissionProcessedAt  *time.Time `gorm:"type:timestamp;default:null" json:"commission_processed_at,omitempty"`
	CommissionError        string     `gorm:"type:text" json:"commission_error"`
	CommissionsGenerated   int        `gorm:"default:0" json:"commissions_generated"`
	Environment            string     `gorm:"type:varchar(20);not null;default:'test';index" json:"environment"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsZeroAmount reports whether this payment is exempt from settlement
// (free trials and 100% discounted invoices).
func (p *Payment) IsZeroAmount() bool {
	return p.AmountCents == 0
}
