package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/consumption/domain"
	"gorm.io/gorm"
)

const classColumns = `id, package_id, teacher_id, student_id, course_id, class_date, start_time, end_time, duration_hours, status, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, class *domain.ClassRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO class_records (`+classColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		class.ID,
		class.PackageID,
		class.TeacherID,
		class.StudentID,
		class.CourseID,
		class.ClassDate,
		class.StartTime,
		class.EndTime,
		class.DurationHours,
		class.Status,
		class.CreatedAt,
		class.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ClassRecord, error) {
	var class domain.ClassRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+classColumns+` FROM class_records WHERE id = ?`,
		id,
	).Scan(&class).Error
	if err != nil {
		return nil, err
	}
	if class.ID == 0 {
		return nil, nil
	}
	return &class, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE class_records SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		now,
		id,
	).Error
}

// SumAttendedHours recomputes consumption from class rows instead of applying deltas.
func (r *repo) SumAttendedHours(ctx context.Context, db *gorm.DB, packageID snowflake.ID) (float64, error) {
	var row struct {
		Total float64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(duration_hours), 0) AS total
		 FROM class_records WHERE package_id = ? AND status = ?`,
		packageID,
		domain.StatusAttended,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}

func (r *repo) ListByPackage(ctx context.Context, db *gorm.DB, packageID snowflake.ID, status string) ([]domain.ClassRecord, error) {
	var classes []domain.ClassRecord
	stmt := db.WithContext(ctx).Model(&domain.ClassRecord{}).Where("package_id = ?", packageID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if err := stmt.Order("class_date asc, start_time asc, id asc").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *repo) ListAttendedByTeacher(ctx context.Context, db *gorm.DB, teacherID snowflake.ID, from, to time.Time) ([]domain.ClassRecord, error) {
	var classes []domain.ClassRecord
	err := db.WithContext(ctx).
		Model(&domain.ClassRecord{}).
		Where("teacher_id = ? AND status = ?", teacherID, domain.StatusAttended).
		Where("class_date >= ? AND class_date < ?", from, to).
		Order("class_date asc, start_time asc, id asc").
		Find(&classes).Error
	if err != nil {
		return nil, err
	}
	return classes, nil
}
