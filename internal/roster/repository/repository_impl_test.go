package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/roster/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Student{}, &domain.Teacher{}))
	return db
}

func TestFindStudent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := Provide()

	require.NoError(t, db.Create(&domain.Student{ID: 10, Name: "Omar", WhatsApp: "+201000", Currency: "USD", Status: "active", CreatedAt: time.Now().UTC()}).Error)

	got, err := repo.FindStudent(ctx, db, 10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "+201000", got.WhatsApp)

	missing, err := repo.FindStudent(ctx, db, 11)
	require.NoError(t, err)
	assert.Nil(t, missing)

	many, err := repo.FindStudents(ctx, db, []snowflake.ID{10, 11})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}

func TestListActiveTeachers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := Provide()
	now := time.Now().UTC()

	require.NoError(t, db.Create(&domain.Teacher{ID: 2, Name: "B", HourlyRate: 5, Currency: "USD", Status: "active", CreatedAt: now}).Error)
	require.NoError(t, db.Create(&domain.Teacher{ID: 1, Name: "A", HourlyRate: 4, Currency: "EGP", Status: "active", CreatedAt: now}).Error)
	require.NoError(t, db.Create(&domain.Teacher{ID: 3, Name: "C", HourlyRate: 4, Currency: "EGP", Status: "inactive", CreatedAt: now}).Error)

	teachers, err := repo.ListActiveTeachers(ctx, db)
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, snowflake.ID(1), teachers[0].ID)

	teacher, err := repo.FindTeacher(ctx, db, 3)
	require.NoError(t, err)
	require.NotNil(t, teacher)
	assert.Equal(t, "inactive", teacher.Status)
}
