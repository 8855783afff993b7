package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"github.com/emadn88/elmcorner/pkg/filter"
)

type CreateCustomBillRequest struct {
	StudentID   snowflake.ID `json:"student_id"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Description string       `json:"description"`
	BillDate    *time.Time   `json:"bill_date,omitempty"`
}

type MarkPaidRequest struct {
	BillID snowflake.ID
	PaidAt *time.Time
}

type ListBillRequest struct {
	Year      *int                           `json:"year,omitempty"`
	Month     *int                           `json:"month,omitempty"`
	Status    filter.OneOrMany[string]       `json:"status,omitempty"`
	StudentID filter.OneOrMany[snowflake.ID] `json:"student_id,omitempty"`
	TeacherID filter.OneOrMany[snowflake.ID] `json:"teacher_id,omitempty"`
	IsCustom  *bool                          `json:"is_custom,omitempty"`
	PageToken string                         `json:"page_token,omitempty"`
	PageSize  int                            `json:"page_size,omitempty"`
}

type ListBillResponse struct {
	pagination.PageInfo
	Bills  []Bill          `json:"bills"`
	Totals []CurrencyTotal `json:"totals"`
}

type Service interface {
	Summarize(ctx context.Context, packageID snowflake.ID) (BillSummary, error)
	SummarizeMany(ctx context.Context, packageIDs []snowflake.ID) (map[snowflake.ID]BillSummary, error)
	SummarizeStudent(ctx context.Context, studentID snowflake.ID) (StudentBillSummary, error)
	CreateCustomBill(ctx context.Context, req CreateCustomBillRequest) (Bill, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (Bill, error)
	Get(ctx context.Context, billID snowflake.ID) (Bill, error)
	List(ctx context.Context, req ListBillRequest) (ListBillResponse, error)
}

var (
	ErrBillNotFound     = errors.New("bill_not_found")
	ErrPackageNotFound  = errors.New("package_not_found")
	ErrStudentNotFound  = errors.New("student_not_found")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrCurrencyMismatch = errors.New("currency_mismatch")
)
