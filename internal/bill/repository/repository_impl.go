package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"gorm.io/gorm"
)

const billColumns = `id, package_id, student_id, amount, currency, status, paid_at, is_custom, description, bill_date, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bills (`+billColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID,
		bill.PackageID,
		bill.StudentID,
		bill.Amount,
		bill.Currency,
		bill.Status,
		bill.PaidAt,
		bill.IsCustom,
		bill.Description,
		bill.BillDate,
		bill.CreatedAt,
		bill.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	var bill domain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+` FROM bills WHERE id = ?`,
		id,
	).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == 0 {
		return nil, nil
	}
	return &bill, nil
}

func (r *repo) FindAutoBill(ctx context.Context, db *gorm.DB, packageID snowflake.ID) (*domain.Bill, error) {
	var bill domain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+` FROM bills WHERE package_id = ? AND is_custom = ?`,
		packageID,
		false,
	).Scan(&bill).Error
	if err != nil {
		return nil, err
	}
	if bill.ID == 0 {
		return nil, nil
	}
	return &bill, nil
}

func (r *repo) ListByPackageIDs(ctx context.Context, db *gorm.DB, packageIDs []snowflake.ID) ([]domain.Bill, error) {
	if len(packageIDs) == 0 {
		return nil, nil
	}
	var bills []domain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+` FROM bills WHERE package_id IN ? ORDER BY id ASC`,
		packageIDs,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) ListByStudentID(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]domain.Bill, error) {
	var bills []domain.Bill
	err := db.WithContext(ctx).Raw(
		`SELECT `+billColumns+` FROM bills WHERE student_id = ? ORDER BY id ASC`,
		studentID,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE bills SET status = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusPaid,
		paidAt,
		now,
		id,
		domain.StatusUnpaid,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, after *pagination.Position, limit int) ([]*domain.Bill, error) {
	var bills []*domain.Bill
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Bill{}), filter)
	if after != nil {
		stmt = stmt.Where("id < ?", after.ID)
	}
	err := stmt.
		Order("id desc").
		Limit(limit + 1).
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.CurrencyTotal, error) {
	var totals []domain.CurrencyTotal
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Bill{}), filter)
	err := stmt.
		Select(`currency,
			COALESCE(SUM(amount), 0) AS total_amount,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS unpaid_amount,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS paid_amount,
			COUNT(*) AS bill_count`, domain.StatusUnpaid, domain.StatusPaid).
		Group("currency").
		Order("currency asc").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// applyFilter ORs values within a field and ANDs across fields.
func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if from, to, ok := periodRange(filter.Year, filter.Month); ok {
		stmt = stmt.Where("bill_date >= ? AND bill_date < ?", from, to)
	}
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if len(filter.StudentIDs) > 0 {
		stmt = stmt.Where("student_id IN ?", filter.StudentIDs)
	}
	if len(filter.TeacherIDs) > 0 {
		stmt = stmt.Where(
			"package_id IN (SELECT package_id FROM class_records WHERE package_id IS NOT NULL AND teacher_id IN ?)",
			filter.TeacherIDs,
		)
	}
	if filter.IsCustom != nil {
		stmt = stmt.Where("is_custom = ?", *filter.IsCustom)
	}
	return stmt
}

func periodRange(year, month *int) (time.Time, time.Time, bool) {
	if year == nil {
		return time.Time{}, time.Time{}, false
	}
	if month == nil {
		from := time.Date(*year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0), true
	}
	from := time.Date(*year, time.Month(*month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0), true
}
