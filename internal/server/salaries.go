package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	salarydomain "github.com/emadn88/elmcorner/internal/salary/domain"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type salaryQuery struct {
	Month    string `form:"month"`
	Year     string `form:"year"`
	Currency string `form:"currency"`
	Rate     string `form:"rate"`
}

// salaryPeriod defaults to the current month when month or year is omitted.
func (s *Server) salaryPeriod(c *gin.Context) (int, int, salarydomain.ConversionRequest, bool) {
	var query salaryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, 0, salarydomain.ConversionRequest{}, false
	}

	now := s.clock.Now().UTC()
	month, year := int(now.Month()), now.Year()

	parsedMonth, err := parseOptionalInt(query.Month)
	if err != nil {
		AbortWithError(c, newValidationError("month", "invalid_month", "invalid month"))
		return 0, 0, salarydomain.ConversionRequest{}, false
	}
	if parsedMonth != nil {
		month = *parsedMonth
	}
	parsedYear, err := parseOptionalInt(query.Year)
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
		return 0, 0, salarydomain.ConversionRequest{}, false
	}
	if parsedYear != nil {
		year = *parsedYear
	}

	conversion := salarydomain.ConversionRequest{
		Currency: strings.ToUpper(strings.TrimSpace(query.Currency)),
	}
	if raw := strings.TrimSpace(query.Rate); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			AbortWithError(c, newValidationError("rate", "invalid_rate", "invalid rate"))
			return 0, 0, salarydomain.ConversionRequest{}, false
		}
		conversion.Rate = &rate
	}

	return month, year, conversion, true
}

func (s *Server) GetTeacherSalary(c *gin.Context) {
	teacherID, ok := pathID(c, "teacher_id")
	if !ok {
		return
	}
	month, year, conversion, ok := s.salaryPeriod(c)
	if !ok {
		return
	}

	resp, err := s.salarySvc.ComputeBreakdown(c.Request.Context(), salarydomain.BreakdownRequest{
		TeacherID:         teacherID,
		Month:             month,
		Year:              year,
		ConversionRequest: conversion,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSalaryStatistics(c *gin.Context) {
	month, year, conversion, ok := s.salaryPeriod(c)
	if !ok {
		return
	}

	resp, err := s.salarySvc.Statistics(c.Request.Context(), salarydomain.StatisticsRequest{
		Month:             month,
		Year:              year,
		ConversionRequest: conversion,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExportSalaryStatistics(c *gin.Context) {
	month, year, conversion, ok := s.salaryPeriod(c)
	if !ok {
		return
	}

	// Buffered so a failed export still renders as a JSON error.
	var buf bytes.Buffer
	err := s.salarySvc.ExportStatistics(c.Request.Context(), salarydomain.StatisticsRequest{
		Month:             month,
		Year:              year,
		ConversionRequest: conversion,
	}, &buf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("salary-statistics-%04d-%02d.xlsx", year, month)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
