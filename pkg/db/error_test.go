package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"pgconn", &pgconn.PgError{Code: "23505"}, true},
		{"sqlite", errors.New("UNIQUE constraint failed: packages.student_id"), true},
		{"mysql", errors.New("Error 1062: Duplicate entry"), true},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestIsRetryableTxErr(t *testing.T) {
	assert.True(t, IsRetryableTxErr(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryableTxErr(errors.New("database is locked")))
	assert.False(t, IsRetryableTxErr(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryableTxErr(nil))
}
