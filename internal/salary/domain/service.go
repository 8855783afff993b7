package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
)

// ConversionRequest asks for a display currency. Rate overrides the configured
// display rates when set and applies to a single source currency.
type ConversionRequest struct {
	Currency string   `form:"currency" json:"currency"`
	Rate     *float64 `form:"rate" json:"rate,omitempty"`
}

type BreakdownRequest struct {
	TeacherID snowflake.ID `json:"-"`
	Month     int          `form:"month" json:"month"`
	Year      int          `form:"year" json:"year"`
	ConversionRequest
}

type StatisticsRequest struct {
	Month int `form:"month" json:"month"`
	Year  int `form:"year" json:"year"`
	ConversionRequest
}

type Service interface {
	ComputeBreakdown(ctx context.Context, req BreakdownRequest) (SalaryLine, error)
	Statistics(ctx context.Context, req StatisticsRequest) (Statistics, error)
	// ExportStatistics writes the statistics as an XLSX workbook.
	ExportStatistics(ctx context.Context, req StatisticsRequest, w io.Writer) error
}

var (
	ErrTeacherNotFound     = errors.New("teacher_not_found")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidRate         = errors.New("invalid_rate")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrUnknownRate         = errors.New("unknown_display_rate")
	ErrMixedSourceCurrency = errors.New("mixed_source_currency")
)
