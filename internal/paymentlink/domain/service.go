package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentLink is returned by EnsureLink. PublicURL carries the raw token and
// is only populated when the link was created by this call.
type PaymentLink struct {
	BillID      snowflake.ID `json:"bill_id"`
	OrderID     string       `json:"order_id"`
	Provider    string       `json:"provider"`
	RedirectURL string       `json:"redirect_url"`
	PublicURL   string       `json:"public_url,omitempty"`
	Created     bool         `json:"created"`
	CreatedAt   time.Time    `json:"created_at"`
}

// GatewayNotification is the webhook body posted by the payment gateway.
type GatewayNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
}

type NotificationResult struct {
	OrderID string       `json:"order_id"`
	BillID  snowflake.ID `json:"bill_id"`
	Outcome string       `json:"outcome"`
}

// PublicBill is the unauthenticated view of a bill reached through its token.
type PublicBill struct {
	BillID      snowflake.ID `json:"bill_id"`
	StudentName string       `json:"student_name"`
	Description string       `json:"description,omitempty"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Display     string       `json:"display_amount"`
	Status      string       `json:"status"`
	BillDate    time.Time    `json:"bill_date"`
	PaidAt      *time.Time   `json:"paid_at,omitempty"`
	PaymentURL  string       `json:"payment_url,omitempty"`
}

type Service interface {
	EnsureLink(ctx context.Context, billID snowflake.ID) (PaymentLink, error)
	HandleNotification(ctx context.Context, payload GatewayNotification) (NotificationResult, error)
	ResolveToken(ctx context.Context, rawToken string) (PublicBill, error)
}

var (
	ErrBillNotFound     = errors.New("bill_not_found")
	ErrBillAlreadyPaid  = errors.New("bill_already_paid")
	ErrPaymentGateway   = errors.New("payment_gateway_error")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrUnknownOrder     = errors.New("unknown_order")
	ErrTokenNotFound    = errors.New("token_not_found")
)
