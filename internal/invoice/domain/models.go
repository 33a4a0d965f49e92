package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusIssued    Status = "issued"
	StatusCancelled Status = "cancelled"
)

// Invoice is a fiscal note issued by an entity. Only ISSUED invoices count
// toward revenue, bucketed by competency date rather than issue date.
type Invoice struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	EntityID       snowflake.ID    `gorm:"not null;index:idx_invoices_entity_competency,priority:1" json:"entity_id"`
	Number         string          `gorm:"not null" json:"number"`
	Value          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"value"`
	IssuedAt       time.Time       `gorm:"not null" json:"issued_at"`
	CompetencyDate time.Time       `gorm:"not null;index:idx_invoices_entity_competency,priority:2" json:"competency_date"`
	Status         Status          `gorm:"type:varchar(16);not null" json:"status"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }
