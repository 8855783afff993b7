package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Token grants public access to one bill and ties it to a gateway order.
// Only the sha256 of the raw token is stored.
type Token struct {
	ID          snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	BillID      snowflake.ID `gorm:"not null;index" json:"bill_id"`
	TokenHash   string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	OrderID     string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"order_id"`
	Provider    string       `gorm:"type:varchar(32);not null" json:"provider"`
	RedirectURL string       `gorm:"type:text" json:"redirect_url,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	RevokedAt   *time.Time   `json:"revoked_at,omitempty"`
}

func (Token) TableName() string { return "bill_payment_tokens" }

// Gateway transaction statuses sent on webhook notifications.
const (
	TransactionSettlement = "settlement"
	TransactionCapture    = "capture"
	TransactionPending    = "pending"
	TransactionExpire     = "expire"
	TransactionCancel     = "cancel"
	TransactionDeny       = "deny"
	TransactionFailure    = "failure"

	FraudAccept = "accept"
)

// Outcomes of a handled webhook.
const (
	OutcomePaid    = "paid"
	OutcomeRevoked = "revoked"
	OutcomeIgnored = "ignored"
)
