package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	contextPackageIDKey = "package_id"
	contextClassIDKey   = "class_id"
	contextBillIDKey    = "bill_id"
	contextStudentIDKey = "student_id"
)

// PublicRateLimit throttles unauthenticated routes per client IP.
func (s *Server) PublicRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.publicLimiter == nil {
			c.Next()
			return
		}

		res, ok := s.publicLimiter.Allow(c.Request.Context(), c.ClientIP())
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !ok {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

// tagResource exposes the :id path parameter to request logs and spans
// under key.
func tagResource(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param("id"); id != "" {
			c.Set(key, id)
		}
		c.Next()
	}
}
