package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sanarberkebayram/monetizeit/internal/usage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists daily usage aggregates.
type Repository struct {
	db   *gorm.DB
	node *snowflake.Node
}

func New(db *gorm.DB, node *snowflake.Node) *Repository {
	return &Repository{db: db, node: node}
}

// Apply folds one usage record into its calendar-day aggregate. The
// upsert is additive, so concurrent consumers on different entries
// never lose counts.
func (r *Repository) Apply(ctx context.Context, record domain.Record) error {
	day := record.Day()
	now := time.Now().UTC()

	aggregate := domain.Aggregate{
		ID:            r.node.Generate().Int64(),
		APIID:         record.APIID,
		ClientID:      record.ClientID,
		Day:           day,
		TotalRequests: record.Units,
		TotalBytes:    record.Bytes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "api_id"}, {Name: "client_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_requests": gorm.Expr("total_requests + ?", record.Units),
			"total_bytes":    gorm.Expr("total_bytes + ?", record.Bytes),
			"updated_at":     now,
		}),
	}).Create(&aggregate).Error
}

// SumRange totals usage for an API and client over [start, end).
func (r *Repository) SumRange(ctx context.Context, apiID, clientID string, start, end time.Time) (requests, bytes int64, err error) {
	row := struct {
		Requests int64
		Bytes    int64
	}{}

	err = r.db.WithContext(ctx).
		Model(&domain.Aggregate{}).
		Select("COALESCE(SUM(total_requests), 0) AS requests, COALESCE(SUM(total_bytes), 0) AS bytes").
		Where("api_id = ? AND client_id = ? AND day >= ? AND day < ?", apiID, clientID, start, end).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Requests, row.Bytes, nil
}

// ListDays returns the per-day aggregates for an API and client over
// [start, end), oldest first.
func (r *Repository) ListDays(ctx context.Context, apiID, clientID string, start, end time.Time) ([]domain.Aggregate, error) {
	var aggregates []domain.Aggregate
	err := r.db.WithContext(ctx).
		Where("api_id = ? AND client_id = ? AND day >= ? AND day < ?", apiID, clientID, start, end).
		Order("day ASC").
		Find(&aggregates).Error
	return aggregates, err
}
