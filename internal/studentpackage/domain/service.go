package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"github.com/emadn88/elmcorner/pkg/filter"
	"gorm.io/gorm"
)

type CreatePackageRequest struct {
	StudentID  snowflake.ID `json:"student_id"`
	TotalHours float64      `json:"total_hours"`
	HourPrice  float64      `json:"hour_price"`
	Currency   string       `json:"currency"`
	StartDate  *time.Time   `json:"start_date,omitempty"`
}

// ReactivateRequest fields left nil are copied from the finished round.
type ReactivateRequest struct {
	PackageID  snowflake.ID `json:"-"`
	TotalHours *float64     `json:"total_hours,omitempty"`
	HourPrice  *float64     `json:"hour_price,omitempty"`
	Currency   *string      `json:"currency,omitempty"`
	StartDate  *time.Time   `json:"start_date,omitempty"`
}

type ListPackageRequest struct {
	StudentID   filter.OneOrMany[snowflake.ID] `json:"student_id,omitempty"`
	Status      filter.OneOrMany[string]       `json:"status,omitempty"`
	RoundNumber *int                           `json:"round_number,omitempty"`
	PageToken   string                         `json:"page_token,omitempty"`
	PageSize    int                            `json:"page_size,omitempty"`
}

type ListFinishedRequest struct {
	StudentID filter.OneOrMany[snowflake.ID] `json:"student_id,omitempty"`
	Year      *int                           `json:"year,omitempty"`
	Month     *int                           `json:"month,omitempty"`
	PageToken string                         `json:"page_token,omitempty"`
	PageSize  int                            `json:"page_size,omitempty"`
}

// NotificationState mirrors the notification ledger row of a package.
type NotificationState struct {
	NotificationCount    int        `json:"notification_count"`
	LastNotificationSent *time.Time `json:"last_notification_sent"`
}

type PackageDetail struct {
	Package      Package                `json:"package"`
	StudentName  string                 `json:"student_name,omitempty"`
	BillSummary  billdomain.BillSummary `json:"bill_summary"`
	Notification NotificationState      `json:"notification"`
}

type ListPackageResponse struct {
	pagination.PageInfo
	Packages []PackageDetail `json:"packages"`
}

type Service interface {
	Create(ctx context.Context, req CreatePackageRequest) (Package, error)
	Get(ctx context.Context, id snowflake.ID) (PackageDetail, error)
	List(ctx context.Context, req ListPackageRequest) (ListPackageResponse, error)
	ListFinished(ctx context.Context, req ListFinishedRequest) (ListPackageResponse, error)
	// CheckAndClose must run inside the caller's transaction with the package row locked.
	CheckAndClose(ctx context.Context, tx *gorm.DB, packageID snowflake.ID) (*billdomain.Bill, error)
	// RecordClosed emits post-commit side effects for a close performed through CheckAndClose.
	RecordClosed(ctx context.Context, pkg Package, bill *billdomain.Bill, trigger string)
	Close(ctx context.Context, packageID snowflake.ID) (Package, *billdomain.Bill, error)
	Reactivate(ctx context.Context, req ReactivateRequest) (Package, error)
}

var (
	ErrPackageNotFound     = errors.New("package_not_found")
	ErrStudentNotFound     = errors.New("student_not_found")
	ErrActivePackageExists = errors.New("active_package_exists")
	ErrInvalidTotalHours   = errors.New("invalid_total_hours")
	ErrInvalidHourPrice    = errors.New("invalid_hour_price")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrPackageNotActive    = errors.New("package_not_active")
)
