package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
)

const (
	StatusPending            = "pending"
	StatusAttended           = "attended"
	StatusAbsentStudent      = "absent_student"
	StatusCancelledByTeacher = "cancelled_by_teacher"
	StatusCancelledByStudent = "cancelled_by_student"
)

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusAttended, StatusAbsentStudent, StatusCancelledByTeacher, StatusCancelledByStudent:
		return true
	default:
		return false
	}
}

// ClassRecord is one scheduled class. Trial classes carry no package.
type ClassRecord struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	PackageID     *snowflake.ID `gorm:"index" json:"package_id"`
	TeacherID     snowflake.ID  `gorm:"not null;index" json:"teacher_id"`
	StudentID     snowflake.ID  `gorm:"not null;index" json:"student_id"`
	CourseID      snowflake.ID  `gorm:"not null" json:"course_id"`
	ClassDate     time.Time     `gorm:"not null;index" json:"class_date"`
	StartTime     string        `gorm:"not null" json:"start_time"`
	EndTime       string        `gorm:"not null" json:"end_time"`
	DurationHours float64       `gorm:"not null" json:"duration_hours"`
	Status        string        `gorm:"not null;default:pending;index" json:"status"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

func (ClassRecord) TableName() string { return "class_records" }

func (c ClassRecord) IsAttended() bool { return c.Status == StatusAttended }

// PackageHourDelta describes a package after an attendance change.
type PackageHourDelta struct {
	PackageID      snowflake.ID     `json:"package_id"`
	ClassID        snowflake.ID     `json:"class_id"`
	DurationHours  float64          `json:"duration_hours"`
	ConsumedHours  float64          `json:"consumed_hours"`
	RemainingHours float64          `json:"remaining_hours"`
	Counter        int              `json:"counter"`
	TotalClasses   int              `json:"total_classes"`
	PackageStatus  string           `json:"package_status"`
	ClosingBill    *billdomain.Bill `json:"closing_bill,omitempty"`
}

// ClassView is a class with its 1-based position among attended classes.
type ClassView struct {
	ClassRecord
	Counter *int `json:"counter"`
}
