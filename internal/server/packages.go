package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type createPackageRequest struct {
	StudentID  snowflake.ID `json:"student_id"`
	TotalHours float64      `json:"total_hours"`
	HourPrice  float64      `json:"hour_price"`
	Currency   string       `json:"currency"`
	StartDate  string       `json:"start_date"`
}

func (s *Server) CreatePackage(c *gin.Context) {
	var req createPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.StudentID <= 0 {
		AbortWithError(c, newValidationError("student_id", "required", "student_id is required"))
		return
	}

	startDate, err := parseOptionalTime(req.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}

	resp, err := s.packageSvc.Create(c.Request.Context(), packagedomain.CreatePackageRequest{
		StudentID:  req.StudentID,
		TotalHours: req.TotalHours,
		HourPrice:  req.HourPrice,
		Currency:   strings.TrimSpace(req.Currency),
		StartDate:  startDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPackages(c *gin.Context) {
	var query struct {
		pagination.Pagination
		RoundNumber string `form:"round_number"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentIDs, err := queryIDs(c, "student_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	round, err := parseOptionalInt(query.RoundNumber)
	if err != nil {
		AbortWithError(c, newValidationError("round_number", "invalid_round_number", "invalid round_number"))
		return
	}

	resp, err := s.packageSvc.List(c.Request.Context(), packagedomain.ListPackageRequest{
		StudentID:   studentIDs,
		Status:      queryStrings(c, "status"),
		RoundNumber: round,
		PageToken:   strings.TrimSpace(query.PageToken),
		PageSize:    query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Packages, "page_info": resp.PageInfo})
}

func (s *Server) ListFinishedPackages(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Year  string `form:"year"`
		Month string `form:"month"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentIDs, err := queryIDs(c, "student_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	year, err := parseOptionalInt(query.Year)
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
		return
	}
	month, err := parseOptionalInt(query.Month)
	if err != nil {
		AbortWithError(c, newValidationError("month", "invalid_month", "invalid month"))
		return
	}

	resp, err := s.packageSvc.ListFinished(c.Request.Context(), packagedomain.ListFinishedRequest{
		StudentID: studentIDs,
		Year:      year,
		Month:     month,
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Packages, "page_info": resp.PageInfo})
}

func (s *Server) GetPackage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.packageSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ClosePackage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	pkg, bill, err := s.packageSvc.Close(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"package": pkg, "bill": bill}})
}

type reactivatePackageRequest struct {
	TotalHours *float64 `json:"total_hours"`
	HourPrice  *float64 `json:"hour_price"`
	Currency   *string  `json:"currency"`
	StartDate  string   `json:"start_date"`
}

func (s *Server) ReactivatePackage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	// Overrides are optional; an empty body reuses the finished round's terms.
	var req reactivatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalTime(req.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	if req.Currency != nil {
		trimmed := strings.TrimSpace(*req.Currency)
		req.Currency = &trimmed
	}

	resp, err := s.packageSvc.Reactivate(c.Request.Context(), packagedomain.ReactivateRequest{
		PackageID:  id,
		TotalHours: req.TotalHours,
		HourPrice:  req.HourPrice,
		Currency:   req.Currency,
		StartDate:  startDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPackageBillSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.billSvc.Summarize(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
