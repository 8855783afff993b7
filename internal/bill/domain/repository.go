package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Year       *int
	Month      *int
	Statuses   []string
	StudentIDs []snowflake.ID
	TeacherIDs []snowflake.ID
	IsCustom   *bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindAutoBill(ctx context.Context, db *gorm.DB, packageID snowflake.ID) (*Bill, error)
	ListByPackageIDs(ctx context.Context, db *gorm.DB, packageIDs []snowflake.ID) ([]Bill, error)
	ListByStudentID(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]Bill, error)
	// MarkPaid flips unpaid to paid and reports whether this call did it.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt, now time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, after *pagination.Position, limit int) ([]*Bill, error)
	Totals(ctx context.Context, db *gorm.DB, filter ListFilter) ([]CurrencyTotal, error)
}
