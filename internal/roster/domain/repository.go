package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindStudent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Student, error)
	FindStudents(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]Student, error)
	FindTeacher(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Teacher, error)
	ListActiveTeachers(ctx context.Context, db *gorm.DB) ([]Teacher, error)
}

var (
	ErrStudentNotFound = errors.New("student_not_found")
	ErrTeacherNotFound = errors.New("teacher_not_found")
)
