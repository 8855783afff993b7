package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	StudentIDs  []snowflake.ID
	Statuses    []string
	RoundNumber *int
	// FinishedFrom/FinishedTo bound finished_at, end exclusive.
	FinishedFrom *time.Time
	FinishedTo   *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, pkg *Package) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Package, error)
	// FindByIDForUpdate row-locks the package on dialects that support it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Package, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]Package, error)
	FindActiveByStudent(ctx context.Context, db *gorm.DB, studentID snowflake.ID) (*Package, error)
	MaxRound(ctx context.Context, db *gorm.DB, studentID snowflake.ID) (int, error)
	UpdateConsumed(ctx context.Context, db *gorm.DB, id snowflake.ID, consumed float64, now time.Time) error
	// MarkFinished is a compare-and-swap on status; false means another caller won.
	MarkFinished(ctx context.Context, db *gorm.DB, id snowflake.ID, finishedAt time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, after *pagination.Position, limit int) ([]*Package, error)
}
