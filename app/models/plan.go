package models

import "time"

// Plan is a sellable subscription plan. Commission configuration lives in
// PlanCommissionLevel rows; processor price ids map in via PlanPriceMapping.
type Plan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlanCommissionLevel holds the percentage paid at one referral chain level
// for payments on a given plan.
type PlanCommissionLevel struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PlanID     uint      `gorm:"not null;index;uniqueIndex:ux_plan_commission_levels_plan_level,priority:1" json:"plan_id"`
	Level      int       `gorm:"not null;uniqueIndex:ux_plan_commission_levels_plan_level,priority:2" json:"level"`
	Percentage float64   `gorm:"type:decimal(5,2);not null" json:"percentage"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlanPriceMapping maps a processor price id within one environment to an
// internal plan. Used for plan-change detection on subscription updates.
type PlanPriceMapping struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ExternalPriceID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_plan_price_mappings_price_env,priority:1" json:"external_price_id"`
	Environment     string    `gorm:"type:varchar(20);not null;default:'test';uniqueIndex:ux_plan_price_mappings_price_env,priority:2" json:"environment"`
	PlanID          uint      `gorm:"not null;index" json:"plan_id"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
