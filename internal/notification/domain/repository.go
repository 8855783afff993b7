package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindRecord(ctx context.Context, db *gorm.DB, packageID snowflake.ID) (*Record, error)
	FindRecords(ctx context.Context, db *gorm.DB, packageIDs []snowflake.ID) (map[snowflake.ID]Record, error)
	FindDispatch(ctx context.Context, db *gorm.DB, dispatchKey string) (*Dispatch, error)
	// InsertDispatch reports false when the key was already recorded.
	InsertDispatch(ctx context.Context, db *gorm.DB, dispatch *Dispatch) (bool, error)
	IncrementRecord(ctx context.Context, db *gorm.DB, packageID snowflake.ID, sentAt time.Time) error
}
