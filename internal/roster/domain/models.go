package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Student is a read-only view of the externally managed students table.
type Student struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	WhatsApp  string       `gorm:"column:whatsapp" json:"whatsapp,omitempty"`
	Email     string       `json:"email,omitempty"`
	Currency  string       `json:"currency,omitempty"`
	Status    string       `gorm:"not null;default:active" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Student) TableName() string { return "students" }

type Teacher struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Name       string       `gorm:"not null" json:"name"`
	HourlyRate float64      `gorm:"not null;default:0" json:"hourly_rate"`
	Currency   string       `gorm:"not null" json:"currency"`
	Status     string       `gorm:"not null;default:active" json:"status"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Teacher) TableName() string { return "teachers" }

const StatusActive = "active"
