package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusApproved = "approved"
	WithdrawalStatusPaid     = "paid"
	WithdrawalStatusRejected = "rejected"
)

// Withdrawal is a payout request over a reserved set of available commissions.
// Reservation is represented by Commission.WithdrawalID membership; the
// commission status field only changes to "withdrawn" when the withdrawal is
// paid.
type Withdrawal struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	PublicID          string     `gorm:"type:varchar(36);not null;uniqueIndex:ux_withdrawals_public_id" json:"public_id"`
	AffiliateID       uint       `gorm:"not null;index" json:"affiliate_id"`
	AmountCents       int64      `gorm:"not null" json:"amount_cents" validate:"gt=0"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status" validate:"oneof=pending approved paid rejected"`
	PixKey            string     `gorm:"type:varchar(191);not null" json:"pix_key" validate:"required,max=191"`
	PaymentProofsJSON string     `gorm:"type:text" json:"-"`
	RequestedAt       time.Time  `gorm:"type:timestamp;not null" json:"requested_at"`
	ApprovedAt        *time.Time `gorm:"type:timestamp;default:null" json:"approved_at,omitempty"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	RejectedReason    string     `gorm:"type:varchar(255)" json:"rejected_reason"`
	ApprovedBy        string     `gorm:"type:varchar(100)" json:"approved_by"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (w *Withdrawal) Validate() error {
	v := validator.New()

	return v.Struct(w)
}

// PaymentProofURLs decodes the stored proof-of-payment attachment URLs.
func (w *Withdrawal) PaymentProofURLs() []string {
	if w.PaymentProofsJSON == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(w.PaymentProofsJSON), &urls); err != nil {
		return nil
	}
	return urls
}

// SetPaymentProofURLs encodes proof-of-payment attachment URLs for storage.
func (w *Withdrawal) SetPaymentProofURLs(urls []string) error {
	if len(urls) == 0 {
		w.PaymentProofsJSON = ""
		return nil
	}
	raw, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	w.PaymentProofsJSON = string(raw)
	return nil
}
