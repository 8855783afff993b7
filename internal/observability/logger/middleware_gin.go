package logger

import (
	"net/http"
	"strings"
	"time"

	obscontext "github.com/emadn88/elmcorner/internal/observability/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	headerRequestID = "X-Request-Id"
	headerAdminID   = "X-Admin-Id"
)

// MiddlewareConfig controls request logging behavior. ErrorClassifier maps
// a handler error to its response type and code.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware seeds the request context with correlation data and writes
// one http_request entry per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithClient(ctx, c.ClientIP(), c.Request.UserAgent())
		if adminID := strings.TrimSpace(c.GetHeader(headerAdminID)); adminID != "" {
			ctx = obscontext.WithActor(ctx, "admin", adminID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := append([]zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}, resourceFields(c)...)

		var errorType string
		if lastErr := c.Errors.Last(); lastErr != nil {
			var errorCode string
			if cfg.ErrorClassifier != nil {
				errorType, errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", errorCode))
			if status >= http.StatusInternalServerError {
				fields = append(fields, zap.Error(lastErr.Err))
			}
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		if ce := FromContext(c.Request.Context()).Check(requestLevel(route, status, errorType), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func resourceFields(c *gin.Context) []zap.Field {
	var fields []zap.Field
	for _, key := range obscontext.ResourceKeys {
		value := c.GetString(key)
		if value == "" {
			value = c.Param(key)
		}
		if value != "" {
			fields = append(fields, zap.String(key, value))
		}
	}
	return fields
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
	if requestID == "" {
		requestID = c.GetString("request_id")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(headerRequestID, requestID)
	return requestID
}

// requestLevel keeps probes and public token misses out of info logs and
// raises upstream failures and state conflicts to warn.
func requestLevel(route string, status int, errorType string) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case strings.HasPrefix(route, "/public/") && status == http.StatusNotFound:
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		return zapcore.ErrorLevel
	case status == http.StatusBadGateway, status == http.StatusConflict:
		return zapcore.WarnLevel
	case strings.HasPrefix(route, "/api/payments/") && errorType == "validation_error":
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
