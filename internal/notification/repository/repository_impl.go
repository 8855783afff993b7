package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/notification/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindRecord(ctx context.Context, db *gorm.DB, packageID snowflake.ID) (*domain.Record, error) {
	var record domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT package_id, notification_count, last_notification_sent, created_at, updated_at
		 FROM notification_records WHERE package_id = ?`,
		packageID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.PackageID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindRecords(ctx context.Context, db *gorm.DB, packageIDs []snowflake.ID) (map[snowflake.ID]domain.Record, error) {
	out := make(map[snowflake.ID]domain.Record, len(packageIDs))
	if len(packageIDs) == 0 {
		return out, nil
	}
	var records []domain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT package_id, notification_count, last_notification_sent, created_at, updated_at
		 FROM notification_records WHERE package_id IN ?`,
		packageIDs,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		out[rec.PackageID] = rec
	}
	return out, nil
}

func (r *repo) FindDispatch(ctx context.Context, db *gorm.DB, dispatchKey string) (*domain.Dispatch, error) {
	var dispatch domain.Dispatch
	err := db.WithContext(ctx).Raw(
		`SELECT id, package_id, dispatch_key, kind, message_id, sent_at, created_at
		 FROM notification_dispatches WHERE dispatch_key = ?`,
		dispatchKey,
	).Scan(&dispatch).Error
	if err != nil {
		return nil, err
	}
	if dispatch.ID == 0 {
		return nil, nil
	}
	return &dispatch, nil
}

func (r *repo) InsertDispatch(ctx context.Context, db *gorm.DB, dispatch *domain.Dispatch) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dispatch_key"}},
			DoNothing: true,
		}).
		Create(dispatch)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementRecord is a single upsert so concurrent dispatches never lose a count.
func (r *repo) IncrementRecord(ctx context.Context, db *gorm.DB, packageID snowflake.ID, sentAt time.Time) error {
	record := domain.Record{
		PackageID:            packageID,
		NotificationCount:    1,
		LastNotificationSent: &sentAt,
		CreatedAt:            sentAt,
		UpdatedAt:            sentAt,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "package_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"notification_count":     gorm.Expr("notification_records.notification_count + 1"),
				"last_notification_sent": sentAt,
				"updated_at":             sentAt,
			}),
		}).
		Create(&record).Error
}
