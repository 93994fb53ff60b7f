package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Affiliate is the commission-earning profile the pipeline consumes.
// Rows are written by the excluded admin/CRUD surfaces and are read-only here.
type Affiliate struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	Email              string    `gorm:"type:varchar(200);uniqueIndex" json:"email" validate:"required,email"`
	ReferralCode       string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"referral_code" validate:"required,max=32"`
	PixKey             string    `gorm:"type:varchar(191)" json:"pix_key" validate:"max=191"`
	CommissionEligible bool      `gorm:"default:true;index" json:"commission_eligible"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Affiliate) Validate() error {
	v := validator.New()

	return v.Struct(a)
}
