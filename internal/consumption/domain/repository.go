package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, class *ClassRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ClassRecord, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string, now time.Time) error
	SumAttendedHours(ctx context.Context, db *gorm.DB, packageID snowflake.ID) (float64, error)
	ListByPackage(ctx context.Context, db *gorm.DB, packageID snowflake.ID, status string) ([]ClassRecord, error)
	// ListAttendedByTeacher returns attended classes with from <= class_date < to.
	ListAttendedByTeacher(ctx context.Context, db *gorm.DB, teacherID snowflake.ID, from, to time.Time) ([]ClassRecord, error)
}
