package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListBills(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Year     string `form:"year"`
		Month    string `form:"month"`
		IsCustom string `form:"is_custom"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
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
	isCustom, err := parseOptionalBool(query.IsCustom)
	if err != nil {
		AbortWithError(c, newValidationError("is_custom", "invalid_is_custom", "invalid is_custom"))
		return
	}
	studentIDs, err := queryIDs(c, "student_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	teacherIDs, err := queryIDs(c, "teacher_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billSvc.List(c.Request.Context(), billdomain.ListBillRequest{
		Year:      year,
		Month:     month,
		Status:    queryStrings(c, "status"),
		StudentID: studentIDs,
		TeacherID: teacherIDs,
		IsCustom:  isCustom,
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Bills, "totals": resp.Totals, "page_info": resp.PageInfo})
}

func (s *Server) GetBill(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.billSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createCustomBillRequest struct {
	StudentID   snowflake.ID `json:"student_id"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Description string       `json:"description"`
	BillDate    string       `json:"bill_date"`
}

func (s *Server) CreateCustomBill(c *gin.Context) {
	var req createCustomBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.StudentID <= 0 {
		AbortWithError(c, newValidationError("student_id", "required", "student_id is required"))
		return
	}

	billDate, err := parseOptionalTime(req.BillDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("bill_date", "invalid_bill_date", "invalid bill_date"))
		return
	}

	resp, err := s.billSvc.CreateCustomBill(c.Request.Context(), billdomain.CreateCustomBillRequest{
		StudentID:   req.StudentID,
		Amount:      req.Amount,
		Currency:    strings.TrimSpace(req.Currency),
		Description: strings.TrimSpace(req.Description),
		BillDate:    billDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type markBillPaidRequest struct {
	PaidAt string `json:"paid_at"`
}

func (s *Server) MarkBillPaid(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req markBillPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	paidAt, err := parseOptionalTime(req.PaidAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("paid_at", "invalid_paid_at", "invalid paid_at"))
		return
	}

	resp, err := s.billSvc.MarkPaid(c.Request.Context(), billdomain.MarkPaidRequest{
		BillID: id,
		PaidAt: paidAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreatePaymentLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.paymentLinkSvc.EnsureLink(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": resp})
}

func (s *Server) GetStudentBillSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.billSvc.SummarizeStudent(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
