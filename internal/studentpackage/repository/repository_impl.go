package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/emadn88/elmcorner/pkg/db"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"gorm.io/gorm"
)

const packageColumns = `id, student_id, round_number, start_date, total_hours, consumed_hours, hour_price, currency, status, finished_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, pkg *domain.Package) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO packages (`+packageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.ID,
		pkg.StudentID,
		pkg.RoundNumber,
		pkg.StartDate,
		pkg.TotalHours,
		pkg.ConsumedHours,
		pkg.HourPrice,
		pkg.Currency,
		pkg.Status,
		pkg.FinishedAt,
		pkg.CreatedAt,
		pkg.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Package, error) {
	return r.find(ctx, conn, `SELECT `+packageColumns+` FROM packages WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Package, error) {
	return r.find(ctx, conn, `SELECT `+packageColumns+` FROM packages WHERE id = ?`+db.ForUpdate(conn), id)
}

func (r *repo) FindActiveByStudent(ctx context.Context, conn *gorm.DB, studentID snowflake.ID) (*domain.Package, error) {
	return r.find(ctx, conn,
		`SELECT `+packageColumns+` FROM packages WHERE student_id = ? AND status = ? ORDER BY round_number DESC LIMIT 1`,
		studentID, domain.StatusActive,
	)
}

func (r *repo) find(ctx context.Context, conn *gorm.DB, query string, args ...any) (*domain.Package, error) {
	var pkg domain.Package
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&pkg).Error; err != nil {
		return nil, err
	}
	if pkg.ID == 0 {
		return nil, nil
	}
	return &pkg, nil
}

func (r *repo) FindByIDs(ctx context.Context, conn *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.Package, error) {
	out := make(map[snowflake.ID]domain.Package, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var pkgs []domain.Package
	err := conn.WithContext(ctx).Raw(
		`SELECT `+packageColumns+` FROM packages WHERE id IN ?`,
		ids,
	).Scan(&pkgs).Error
	if err != nil {
		return nil, err
	}
	for _, p := range pkgs {
		out[p.ID] = p
	}
	return out, nil
}

func (r *repo) MaxRound(ctx context.Context, conn *gorm.DB, studentID snowflake.ID) (int, error) {
	var row struct {
		MaxRound int
	}
	err := conn.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(round_number), 0) AS max_round FROM packages WHERE student_id = ?`,
		studentID,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.MaxRound, nil
}

func (r *repo) UpdateConsumed(ctx context.Context, conn *gorm.DB, id snowflake.ID, consumed float64, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE packages SET consumed_hours = ?, updated_at = ? WHERE id = ?`,
		consumed,
		now,
		id,
	).Error
}

func (r *repo) MarkFinished(ctx context.Context, conn *gorm.DB, id snowflake.ID, finishedAt time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE packages SET status = ?, finished_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFinished,
		finishedAt,
		finishedAt,
		id,
		domain.StatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter, after *pagination.Position, limit int) ([]*domain.Package, error) {
	var pkgs []*domain.Package
	stmt := conn.WithContext(ctx).Model(&domain.Package{})
	if len(filter.StudentIDs) > 0 {
		stmt = stmt.Where("student_id IN ?", filter.StudentIDs)
	}
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if filter.RoundNumber != nil {
		stmt = stmt.Where("round_number = ?", *filter.RoundNumber)
	}
	if filter.FinishedFrom != nil {
		stmt = stmt.Where("finished_at >= ?", *filter.FinishedFrom)
	}
	if filter.FinishedTo != nil {
		stmt = stmt.Where("finished_at < ?", *filter.FinishedTo)
	}
	if after != nil {
		stmt = stmt.Where("id < ?", after.ID)
	}
	err := stmt.
		Order("id desc").
		Limit(limit + 1).
		Find(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}
