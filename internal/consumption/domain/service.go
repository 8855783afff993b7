package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateClassRequest struct {
	PackageID *snowflake.ID `json:"package_id,omitempty"`
	TeacherID snowflake.ID  `json:"teacher_id"`
	StudentID snowflake.ID  `json:"student_id"`
	CourseID  snowflake.ID  `json:"course_id"`
	ClassDate time.Time     `json:"class_date"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
}

type UpdateStatusResult struct {
	Class ClassRecord       `json:"class"`
	Delta *PackageHourDelta `json:"delta,omitempty"`
}

type Service interface {
	CreateClass(ctx context.Context, req CreateClassRequest) (ClassRecord, error)
	RecordAttendance(ctx context.Context, classID snowflake.ID) (PackageHourDelta, error)
	ReverseAttendance(ctx context.Context, classID snowflake.ID, newStatus string) (PackageHourDelta, error)
	UpdateStatus(ctx context.Context, classID snowflake.ID, status string) (UpdateStatusResult, error)
	ListPackageClasses(ctx context.Context, packageID snowflake.ID) ([]ClassView, error)
}

var (
	ErrClassNotFound          = errors.New("class_not_found")
	ErrPackageNotFound        = errors.New("package_not_found")
	ErrTeacherNotFound        = errors.New("teacher_not_found")
	ErrNoPackage              = errors.New("no_package")
	ErrPackageClosed          = errors.New("package_closed")
	ErrInvalidTime            = errors.New("invalid_time")
	ErrInvalidDate            = errors.New("invalid_date")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrPackageStudentMismatch = errors.New("package_student_mismatch")
)
