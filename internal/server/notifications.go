package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	notificationdomain "github.com/emadn88/elmcorner/internal/notification/domain"
	"github.com/gin-gonic/gin"
)

const headerIdempotencyKey = "Idempotency-Key"

func (s *Server) GetPackageNotification(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.notificationSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "is_first_notification": resp.IsFirst()})
}

type notifyPackageRequest struct {
	DispatchKey string `json:"dispatch_key"`
}

// NotifyPackage sends the completion message, or a reminder once one was sent.
// The dispatch key may come from the body or the Idempotency-Key header.
func (s *Server) NotifyPackage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req notifyPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	key := strings.TrimSpace(req.DispatchKey)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	}

	resp, err := s.notificationSvc.Notify(c.Request.Context(), notificationdomain.NotifyRequest{
		PackageID:   id,
		DispatchKey: key,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// BulkNotify takes its batch key from the body or the Idempotency-Key header.
func (s *Server) BulkNotify(c *gin.Context) {
	var req notificationdomain.BulkNotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.BatchKey) == "" {
		req.BatchKey = strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	}

	resp, err := s.notificationSvc.BulkNotify(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
