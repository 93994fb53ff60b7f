package models

import "time"

const (
	EnvironmentTest       = "test"
	EnvironmentProduction = "production"
)

// PaymentEvent is the append-only log of raw processor webhook deliveries.
// Rows are immutable after insert except for the processed flag; the unique
// event_id index is what makes ingestion idempotent.
type PaymentEvent struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	EventID             string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_events_event_id" json:"event_id"`
	EventType           string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Environment         string     `gorm:"type:varchar(20);not null;default:'test';index" json:"environment"`
	PayloadJSON         string     `gorm:"type:longtext;not null" json:"payload_json"`
	CorrelatedUserID    *uint      `gorm:"index" json:"correlated_user_id,omitempty"`
	CorrelatedPlanID    *uint      `json:"correlated_plan_id,omitempty"`
	CorrelatedProductID string     `gorm:"type:varchar(191)" json:"correlated_product_id"`
	Email               string     `gorm:"type:varchar(200)" json:"email"`
	CancellationReason  string     `gorm:"type:varchar(255)" json:"cancellation_reason"`
	Processed           bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt         *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError     string     `gorm:"type:text" json:"processing_error"`
	ReceivedAt          time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
