package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetPublicBill renders a bill for the holder of its payment token. Unknown,
// revoked and malformed tokens all answer 404.
func (s *Server) GetPublicBill(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" || len(token) > 128 {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := s.paymentLinkSvc.ResolveToken(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
