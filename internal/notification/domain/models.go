package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	KindSend     = "send"
	KindReminder = "reminder"
)

// Record counts successful dispatches for one package. A missing row means zero.
type Record struct {
	PackageID            snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"package_id"`
	NotificationCount    int          `gorm:"not null;default:0" json:"notification_count"`
	LastNotificationSent *time.Time   `json:"last_notification_sent"`
	CreatedAt            time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null" json:"updated_at"`
}

func (Record) TableName() string { return "notification_records" }

// IsFirst reports whether no dispatch has been recorded yet.
func (r Record) IsFirst() bool { return r.NotificationCount == 0 }

// Dispatch is one recorded send, keyed for replay safety.
type Dispatch struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	PackageID   snowflake.ID `gorm:"not null;index" json:"package_id"`
	DispatchKey string       `gorm:"not null;uniqueIndex" json:"dispatch_key"`
	Kind        string       `gorm:"not null" json:"kind"`
	MessageID   string       `json:"message_id,omitempty"`
	SentAt      time.Time    `gorm:"not null" json:"sent_at"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (Dispatch) TableName() string { return "notification_dispatches" }

// KindFor picks the message wording from the ledger state before sending.
func KindFor(record Record) string {
	if record.IsFirst() {
		return KindSend
	}
	return KindReminder
}
