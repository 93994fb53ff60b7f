package models

import "time"

// PipelineDailyStat aggregates per-day ingestion counters flushed from Redis
// by the metrics counter package.
type PipelineDailyStat struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	StatDate           string    `gorm:"type:varchar(10);not null;uniqueIndex:ux_pipeline_daily_stats_date" json:"stat_date"`
	EventsReceived     int64     `gorm:"not null;default:0" json:"events_received"`
	EventsDuplicate    int64     `gorm:"not null;default:0" json:"events_duplicate"`
	CommissionsCreated int64     `gorm:"not null;default:0" json:"commissions_created"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
