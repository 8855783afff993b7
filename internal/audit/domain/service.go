package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/emadn88/elmcorner/pkg/db/pagination"
)

const (
	ActionPackageCreated          = "package.created"
	ActionPackageFinished         = "package.finished"
	ActionPackageReactivated      = "package.reactivated"
	ActionClassCreated            = "class.created"
	ActionClassAttended           = "class.attended"
	ActionClassAttendanceReversed = "class.attendance_reversed"
	ActionBillCustomCreated       = "bill.custom_created"
	ActionBillPaid                = "bill.paid"
	ActionNotificationSent        = "notification.sent"
	ActionPaymentLinkCreated      = "payment_link.created"
)

// ValidAction accepts dotted "<subject>.<event>" names.
func ValidAction(action string) bool {
	subject, event, ok := strings.Cut(action, ".")
	return ok && subject != "" && event != "" && !strings.ContainsAny(action, " \t")
}

// TargetTypes of the activity feed.
const (
	TargetPackage = "package"
	TargetClass   = "class"
	TargetBill    = "bill"
)

// ListAuditLogRequest filters the activity feed. Actions match any of the
// given values.
type ListAuditLogRequest struct {
	pagination.Pagination
	Actions    []string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
