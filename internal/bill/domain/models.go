package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusUnpaid = "unpaid"
	StatusPaid   = "paid"
)

type Bill struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	PackageID   *snowflake.ID `gorm:"uniqueIndex" json:"package_id"`
	StudentID   snowflake.ID  `gorm:"not null;index" json:"student_id"`
	Amount      float64       `gorm:"not null;check:ck_bills_amount,amount > 0 OR (is_custom = FALSE AND amount >= 0)" json:"amount"`
	Currency    string        `gorm:"not null" json:"currency"`
	Status      string        `gorm:"not null;default:unpaid;index" json:"status"`
	PaidAt      *time.Time    `json:"paid_at"`
	IsCustom    bool          `gorm:"not null;default:false" json:"is_custom"`
	Description string        `json:"description,omitempty"`
	BillDate    time.Time     `gorm:"not null;index" json:"bill_date"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

func (Bill) TableName() string { return "bills" }

func (b Bill) IsPaid() bool { return b.Status == StatusPaid }

// BillSummary aggregates every bill attached to one package.
type BillSummary struct {
	PackageID    snowflake.ID `json:"package_id"`
	TotalAmount  float64      `json:"total_amount"`
	UnpaidAmount float64      `json:"unpaid_amount"`
	PaidAmount   float64      `json:"paid_amount"`
	BillCount    int          `json:"bill_count"`
	Currency     string       `json:"currency"`
}

// CurrencyTotal is one currency bucket of a bill list or student summary.
type CurrencyTotal struct {
	Currency     string  `json:"currency"`
	TotalAmount  float64 `json:"total_amount"`
	UnpaidAmount float64 `json:"unpaid_amount"`
	PaidAmount   float64 `json:"paid_amount"`
	BillCount    int     `json:"bill_count"`
}

type StudentBillSummary struct {
	StudentID snowflake.ID    `json:"student_id"`
	Totals    []CurrencyTotal `json:"totals"`
}

// PackageTerms is the slice of a package an auto bill is derived from.
type PackageTerms struct {
	ID         snowflake.ID
	StudentID  snowflake.ID
	TotalHours float64
	HourPrice  float64
	Currency   string
}
