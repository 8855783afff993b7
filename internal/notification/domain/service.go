package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/emadn88/elmcorner/pkg/filter"
)

const (
	BulkStatusSent    = "sent"
	BulkStatusFailed  = "failed"
	BulkStatusSkipped = "skipped"
)

type RecordDispatchRequest struct {
	PackageID   snowflake.ID
	SentAt      time.Time
	DispatchKey string
	Kind        string
	MessageID   string
}

type NotifyRequest struct {
	PackageID   snowflake.ID `json:"-"`
	DispatchKey string       `json:"dispatch_key,omitempty"`
}

type NotifyResult struct {
	PackageID         snowflake.ID `json:"package_id"`
	Kind              string       `json:"kind"`
	DispatchKey       string       `json:"dispatch_key"`
	MessageID         string       `json:"message_id,omitempty"`
	NotificationCount int          `json:"notification_count"`
	SentAt            time.Time    `json:"sent_at"`
	PaymentLink       string       `json:"payment_link,omitempty"`
	Replayed          bool         `json:"replayed"`
}

type BulkNotifyRequest struct {
	PackageIDs filter.OneOrMany[snowflake.ID] `json:"package_ids"`
	OnlyFirst  bool                           `json:"only_first"`
	BatchKey   string                         `json:"batch_key,omitempty"`
}

type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BulkItemResult struct {
	PackageID         snowflake.ID `json:"package_id"`
	Status            string       `json:"status"`
	Kind              string       `json:"kind,omitempty"`
	NotificationCount int          `json:"notification_count"`
	Error             *ItemError   `json:"error,omitempty"`
}

type BulkNotifyResult struct {
	SuccessCount int              `json:"success_count"`
	FailedCount  int              `json:"failed_count"`
	SkippedCount int              `json:"skipped_count"`
	Results      []BulkItemResult `json:"results"`
}

type Service interface {
	Get(ctx context.Context, packageID snowflake.ID) (Record, error)
	IsFirstNotification(ctx context.Context, packageID snowflake.ID) (bool, error)
	RecordDispatch(ctx context.Context, req RecordDispatchRequest) (Record, error)
	Notify(ctx context.Context, req NotifyRequest) (NotifyResult, error)
	BulkNotify(ctx context.Context, req BulkNotifyRequest) (BulkNotifyResult, error)
}

var (
	ErrPackageNotFound     = errors.New("package_not_found")
	ErrPackageNotFinished  = errors.New("package_not_finished")
	ErrMissingPhone        = errors.New("missing_phone")
	ErrDispatchFailed      = errors.New("dispatch_failed")
	ErrInvalidDispatchKey  = errors.New("invalid_dispatch_key")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrEmptyBulkRequest    = errors.New("empty_bulk_request")
	ErrBulkRequestTooLarge = errors.New("bulk_request_too_large")
	ErrTemplateRender      = errors.New("template_render_failed")
)
