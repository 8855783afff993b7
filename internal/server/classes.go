package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	"github.com/gin-gonic/gin"
)

type createClassRequest struct {
	PackageID *snowflake.ID `json:"package_id"`
	TeacherID snowflake.ID  `json:"teacher_id"`
	StudentID snowflake.ID  `json:"student_id"`
	CourseID  snowflake.ID  `json:"course_id"`
	ClassDate string        `json:"class_date"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
}

func (s *Server) CreateClass(c *gin.Context) {
	var req createClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.TeacherID <= 0 {
		AbortWithError(c, newValidationError("teacher_id", "required", "teacher_id is required"))
		return
	}
	if req.StudentID <= 0 {
		AbortWithError(c, newValidationError("student_id", "required", "student_id is required"))
		return
	}

	classDate, err := parseOptionalTime(req.ClassDate, false)
	if err != nil || classDate == nil {
		AbortWithError(c, newValidationError("class_date", "invalid_class_date", "invalid class_date"))
		return
	}

	resp, err := s.classSvc.CreateClass(c.Request.Context(), consumptiondomain.CreateClassRequest{
		PackageID: req.PackageID,
		TeacherID: req.TeacherID,
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		ClassDate: *classDate,
		StartTime: strings.TrimSpace(req.StartTime),
		EndTime:   strings.TrimSpace(req.EndTime),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPackageClasses(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.classSvc.ListPackageClasses(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateClassStatusRequest struct {
	Status string `json:"status"`
}

// UpdateClassStatus is the attendance entry point: moving a class into or out
// of attended adjusts the package counter and may close the package.
func (s *Server) UpdateClassStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateClassStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		AbortWithError(c, newValidationError("status", "required", "status is required"))
		return
	}

	resp, err := s.classSvc.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.Class.PackageID != nil {
		c.Set(contextPackageIDKey, resp.Class.PackageID.String())
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
