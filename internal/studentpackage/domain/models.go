package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

const hoursEpsilon = 1e-9

// Package is one round of purchased hours for a student.
type Package struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	StudentID     snowflake.ID `gorm:"not null;uniqueIndex:ux_packages_student_round" json:"student_id"`
	RoundNumber   int          `gorm:"not null;uniqueIndex:ux_packages_student_round" json:"round_number"`
	StartDate     time.Time    `gorm:"not null" json:"start_date"`
	TotalHours    float64      `gorm:"not null" json:"total_hours"`
	ConsumedHours float64      `gorm:"not null;default:0" json:"consumed_hours"`
	HourPrice     float64      `gorm:"not null" json:"hour_price"`
	Currency      string       `gorm:"not null" json:"currency"`
	Status        string       `gorm:"not null;default:active;index" json:"status"`
	FinishedAt    *time.Time   `json:"finished_at"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Package) TableName() string { return "packages" }

// RemainingHours never goes below zero.
func (p Package) RemainingHours() float64 {
	remaining := p.TotalHours - p.ConsumedHours
	if remaining < hoursEpsilon {
		return 0
	}
	return remaining
}

// Exhausted reports whether attended hours cover the purchased hours.
// Legacy rows without total hours never exhaust.
func (p Package) Exhausted() bool {
	return p.TotalHours > 0 && p.TotalHours-p.ConsumedHours <= hoursEpsilon
}

func (p Package) IsActive() bool { return p.Status == StatusActive }

func (p Package) MarshalJSON() ([]byte, error) {
	type alias Package
	var remaining *float64
	if p.TotalHours > 0 {
		r := p.RemainingHours()
		remaining = &r
	}
	return json.Marshal(struct {
		alias
		RemainingHours *float64 `json:"remaining_hours"`
	}{alias: alias(p), RemainingHours: remaining})
}
