package models

import "time"

// SubAffiliate is one edge of the referral forest: parent recruited sub.
// Each affiliate has at most one parent; level is the distance of the sub
// affiliate from the root of their recruitment chain.
type SubAffiliate struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ParentAffiliateID uint      `gorm:"not null;index" json:"parent_affiliate_id"`
	SubAffiliateID    uint      `gorm:"not null;uniqueIndex:ux_sub_affiliates_sub_id" json:"sub_affiliate_id"`
	Level             int       `gorm:"not null;default:1" json:"level"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SubAffiliate) TableName() string { return "sub_affiliates" }
