package server

import (
	"errors"
	"net/http"
	"strings"

	auditdomain "github.com/emadn88/elmcorner/internal/audit/domain"
	billdomain "github.com/emadn88/elmcorner/internal/bill/domain"
	consumptiondomain "github.com/emadn88/elmcorner/internal/consumption/domain"
	"github.com/emadn88/elmcorner/internal/locker"
	notificationdomain "github.com/emadn88/elmcorner/internal/notification/domain"
	paymentlinkdomain "github.com/emadn88/elmcorner/internal/paymentlink/domain"
	rosterdomain "github.com/emadn88/elmcorner/internal/roster/domain"
	salarydomain "github.com/emadn88/elmcorner/internal/salary/domain"
	packagedomain "github.com/emadn88/elmcorner/internal/studentpackage/domain"
	"github.com/emadn88/elmcorner/pkg/db/pagination"
	"github.com/emadn88/elmcorner/pkg/filter"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrTooManyRequests    = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentlinkdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, consumptiondomain.ErrPackageClosed):
		return http.StatusConflict, errorPayload{
			Type:    "package_closed",
			Message: "package is finished",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, notificationdomain.ErrDispatchFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "dispatch_failed",
			Message: "message gateway failed, retry later",
		}
	case errors.Is(err, paymentlinkdomain.ErrPaymentGateway):
		return http.StatusBadGateway, errorPayload{
			Type:    "payment_gateway_error",
			Message: "payment gateway failed, retry later",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the rendered error kind and
// the innermost sentinel code.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		return payload.Type, vErr.Errors[0].Code
	}
	code := err.Error()
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, filter.ErrInvalidID),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isPackageValidationError(err),
		isClassValidationError(err),
		isBillValidationError(err),
		isNotificationValidationError(err),
		isSalaryValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isPackageValidationError(err error) bool {
	switch {
	case errors.Is(err, packagedomain.ErrInvalidTotalHours),
		errors.Is(err, packagedomain.ErrInvalidHourPrice),
		errors.Is(err, packagedomain.ErrInvalidCurrency),
		errors.Is(err, packagedomain.ErrInvalidStatus),
		errors.Is(err, packagedomain.ErrInvalidPeriod):
		return true
	default:
		return false
	}
}

func isClassValidationError(err error) bool {
	switch {
	case errors.Is(err, consumptiondomain.ErrInvalidTime),
		errors.Is(err, consumptiondomain.ErrInvalidDate),
		errors.Is(err, consumptiondomain.ErrInvalidStatus),
		errors.Is(err, consumptiondomain.ErrPackageStudentMismatch):
		return true
	default:
		return false
	}
}

func isBillValidationError(err error) bool {
	switch {
	case errors.Is(err, billdomain.ErrInvalidAmount),
		errors.Is(err, billdomain.ErrInvalidCurrency),
		errors.Is(err, billdomain.ErrInvalidStatus),
		errors.Is(err, billdomain.ErrInvalidPeriod),
		errors.Is(err, billdomain.ErrCurrencyMismatch):
		return true
	default:
		return false
	}
}

func isNotificationValidationError(err error) bool {
	switch {
	case errors.Is(err, notificationdomain.ErrMissingPhone),
		errors.Is(err, notificationdomain.ErrInvalidDispatchKey),
		errors.Is(err, notificationdomain.ErrInvalidKind),
		errors.Is(err, notificationdomain.ErrEmptyBulkRequest),
		errors.Is(err, notificationdomain.ErrBulkRequestTooLarge):
		return true
	default:
		return false
	}
}

func isSalaryValidationError(err error) bool {
	switch {
	case errors.Is(err, salarydomain.ErrInvalidPeriod),
		errors.Is(err, salarydomain.ErrInvalidRate),
		errors.Is(err, salarydomain.ErrInvalidCurrency),
		errors.Is(err, salarydomain.ErrUnknownRate),
		errors.Is(err, salarydomain.ErrMixedSourceCurrency):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, packagedomain.ErrActivePackageExists),
		errors.Is(err, packagedomain.ErrPackageNotActive),
		errors.Is(err, consumptiondomain.ErrNoPackage),
		errors.Is(err, notificationdomain.ErrPackageNotFinished),
		errors.Is(err, paymentlinkdomain.ErrBillAlreadyPaid),
		errors.Is(err, locker.ErrLockTimeout):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, packagedomain.ErrActivePackageExists):
		return "student already has an active package"
	case errors.Is(err, packagedomain.ErrPackageNotActive):
		return "package is not active"
	case errors.Is(err, consumptiondomain.ErrNoPackage):
		return "class is not attached to a package"
	case errors.Is(err, notificationdomain.ErrPackageNotFinished):
		return "package is not finished"
	case errors.Is(err, paymentlinkdomain.ErrBillAlreadyPaid):
		return "bill is already paid"
	case errors.Is(err, locker.ErrLockTimeout):
		return "resource is busy, retry later"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, packagedomain.ErrPackageNotFound),
		errors.Is(err, packagedomain.ErrStudentNotFound),
		errors.Is(err, consumptiondomain.ErrClassNotFound),
		errors.Is(err, consumptiondomain.ErrPackageNotFound),
		errors.Is(err, consumptiondomain.ErrTeacherNotFound),
		errors.Is(err, billdomain.ErrBillNotFound),
		errors.Is(err, billdomain.ErrPackageNotFound),
		errors.Is(err, billdomain.ErrStudentNotFound),
		errors.Is(err, notificationdomain.ErrPackageNotFound),
		errors.Is(err, paymentlinkdomain.ErrBillNotFound),
		errors.Is(err, paymentlinkdomain.ErrUnknownOrder),
		errors.Is(err, paymentlinkdomain.ErrTokenNotFound),
		errors.Is(err, salarydomain.ErrTeacherNotFound),
		errors.Is(err, rosterdomain.ErrStudentNotFound),
		errors.Is(err, rosterdomain.ErrTeacherNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, filter.ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "invalid_page_token"
	default:
		for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(next) {
			err = next
		}
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "missing_phone":
		return "whatsapp"
	case "currency_mismatch":
		return "currency"
	case "package_student_mismatch":
		return "package_id"
	case "unknown_display_rate":
		return "rate"
	case "empty_bulk_request", "bulk_request_too_large":
		return "package_ids"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_phone":
		return "student has no whatsapp number"
	case "currency_mismatch":
		return "currency does not match the package currency"
	case "package_student_mismatch":
		return "package does not belong to the student"
	case "unknown_display_rate":
		return "no display rate configured for the currency pair"
	case "empty_bulk_request":
		return "package_ids is required"
	case "bulk_request_too_large":
		return "too many package ids"
	default:
		return "invalid value"
	}
}
