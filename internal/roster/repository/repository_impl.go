package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/roster/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindStudent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Student, error) {
	var student domain.Student
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, whatsapp, email, currency, status, created_at
		 FROM students WHERE id = ?`,
		id,
	).Scan(&student).Error
	if err != nil {
		return nil, err
	}
	if student.ID == 0 {
		return nil, nil
	}
	return &student, nil
}

func (r *repo) FindStudents(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.Student, error) {
	out := make(map[snowflake.ID]domain.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var students []domain.Student
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, whatsapp, email, currency, status, created_at
		 FROM students WHERE id IN ?`,
		ids,
	).Scan(&students).Error
	if err != nil {
		return nil, err
	}
	for _, s := range students {
		out[s.ID] = s
	}
	return out, nil
}

func (r *repo) FindTeacher(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Teacher, error) {
	var teacher domain.Teacher
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, hourly_rate, currency, status, created_at
		 FROM teachers WHERE id = ?`,
		id,
	).Scan(&teacher).Error
	if err != nil {
		return nil, err
	}
	if teacher.ID == 0 {
		return nil, nil
	}
	return &teacher, nil
}

func (r *repo) ListActiveTeachers(ctx context.Context, db *gorm.DB) ([]domain.Teacher, error) {
	var teachers []domain.Teacher
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, hourly_rate, currency, status, created_at
		 FROM teachers WHERE status = ? ORDER BY id ASC`,
		domain.StatusActive,
	).Scan(&teachers).Error
	if err != nil {
		return nil, err
	}
	return teachers, nil
}
