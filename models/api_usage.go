package models

import "time"

// APIUsage counts requests per day and path. Rows are upserted by middleware
// and read by the stats endpoint for a daily-activity figure.
type APIUsage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"type:date;uniqueIndex:idx_api_usage_date_path" json:"date"`
	Path      string    `gorm:"size:255;uniqueIndex:idx_api_usage_date_path" json:"path"`
	Count     int64     `gorm:"default:0" json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}
