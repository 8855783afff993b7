package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ClassLine is one attended class inside a salary breakdown.
type ClassLine struct {
	ClassID       snowflake.ID `json:"class_id"`
	StudentID     snowflake.ID `json:"student_id"`
	CourseID      snowflake.ID `json:"course_id"`
	ClassDate     time.Time    `json:"class_date"`
	StartTime     string       `json:"start_time"`
	EndTime       string       `json:"end_time"`
	DurationHours float64      `json:"duration_hours"`
	Salary        float64      `json:"salary"`
}

// Conversion is a display-only rate applied to a computed breakdown.
type Conversion struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Rate         float64 `json:"rate"`
}

// SalaryLine is a teacher's pay for one calendar month. It is always
// recomputed from class rows and never stored.
type SalaryLine struct {
	TeacherID    snowflake.ID `json:"teacher_id"`
	TeacherName  string       `json:"teacher_name"`
	Month        int          `json:"month"`
	Year         int          `json:"year"`
	TotalClasses int          `json:"total_classes"`
	TotalHours   float64      `json:"total_hours"`
	HourlyRate   float64      `json:"hourly_rate"`
	Currency     string       `json:"currency"`
	TotalSalary  float64      `json:"total_salary"`
	Classes      []ClassLine  `json:"classes"`
	Conversion   *Conversion  `json:"conversion,omitempty"`
}

type CurrencyStatistics struct {
	Currency            string  `json:"currency"`
	TeacherCount        int     `json:"teacher_count"`
	TotalHours          float64 `json:"total_hours"`
	TotalSalary         float64 `json:"total_salary"`
	AverageSalary       float64 `json:"average_salary"`
	PreviousMonthSalary float64 `json:"previous_month_salary"`
}

type TeacherStatistics struct {
	TeacherID           snowflake.ID `json:"teacher_id"`
	TeacherName         string       `json:"teacher_name"`
	Currency            string       `json:"currency"`
	TotalClasses        int          `json:"total_classes"`
	TotalHours          float64      `json:"total_hours"`
	TotalSalary         float64      `json:"total_salary"`
	PreviousMonthSalary float64      `json:"previous_month_salary"`
}

type Statistics struct {
	Month      int                  `json:"month"`
	Year       int                  `json:"year"`
	Currencies []CurrencyStatistics `json:"currencies"`
	Teachers   []TeacherStatistics  `json:"teachers"`
}
