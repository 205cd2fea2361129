package domain

import "time"

// Aggregate is one day of usage for an API and client pair. Rows are
// written additively; replaying a stream entry after a crash can
// overcount at most one batch.
type Aggregate struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	APIID         string    `gorm:"column:api_id;uniqueIndex:ux_usage_aggregates_day" json:"api_id"`
	ClientID      string    `gorm:"uniqueIndex:ux_usage_aggregates_day" json:"client_id"`
	Day           time.Time `gorm:"uniqueIndex:ux_usage_aggregates_day" json:"day"`
	TotalRequests int64     `json:"total_requests"`
	TotalBytes    int64     `json:"total_bytes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Aggregate) TableName() string {
	return "usage_aggregates"
}
