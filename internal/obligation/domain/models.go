package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type GuideStatus string

const (
	GuideStatusPending GuideStatus = "pending"
	GuideStatusPaid    GuideStatus = "paid"
	GuideStatusOverdue GuideStatus = "overdue"
)

type DeclarationStatus string

const (
	DeclarationStatusDraft     DeclarationStatus = "draft"
	DeclarationStatusSubmitted DeclarationStatus = "submitted"
)

// DASGuide is the monthly simplified tax guide. Its amount is fixed when
// the guide is created.
type DASGuide struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	EntityID  snowflake.ID    `gorm:"not null;uniqueIndex:ux_das_guides_entity_period,priority:1" json:"entity_id"`
	Year      int             `gorm:"not null;uniqueIndex:ux_das_guides_entity_period,priority:2" json:"year"`
	Month     int             `gorm:"not null;uniqueIndex:ux_das_guides_entity_period,priority:3" json:"month"`
	DueDate   time.Time       `gorm:"not null;index" json:"due_date"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	INSS      decimal.Decimal `gorm:"column:inss;type:numeric(14,2);not null" json:"inss"`
	ICMS      decimal.Decimal `gorm:"column:icms;type:numeric(14,2);not null" json:"icms"`
	ISS       decimal.Decimal `gorm:"column:iss;type:numeric(14,2);not null" json:"iss"`
	Status    GuideStatus     `gorm:"type:varchar(16);not null;index" json:"status"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (DASGuide) TableName() string { return "das_guides" }

// AnnualDeclaration is the yearly revenue declaration (DASN-SIMEI) for a
// calendar year, due May 31 of the following year.
type AnnualDeclaration struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	EntityID      snowflake.ID      `gorm:"not null;uniqueIndex:ux_annual_declarations_entity_year,priority:1" json:"entity_id"`
	Year          int               `gorm:"not null;uniqueIndex:ux_annual_declarations_entity_year,priority:2" json:"year"`
	GrossRevenue  decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"gross_revenue"`
	DueDate       time.Time         `gorm:"not null" json:"due_date"`
	Status        DeclarationStatus `gorm:"type:varchar(16);not null" json:"status"`
	SubmittedAt   *time.Time        `json:"submitted_at,omitempty"`
	ReceiptNumber string            `json:"receipt_number,omitempty"`
	CreatedAt     time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updated_at"`
}

func (AnnualDeclaration) TableName() string { return "annual_declarations" }

type ObligationType string

const (
	ObligationTypeGuide       ObligationType = "das_guide"
	ObligationTypeDeclaration ObligationType = "annual_declaration"
)

// Obligation is the merged view over guides and declarations.
type Obligation struct {
	Type     ObligationType  `json:"type"`
	ID       snowflake.ID    `json:"id"`
	EntityID snowflake.ID    `json:"entity_id"`
	Year     int             `json:"year"`
	Month    int             `json:"month,omitempty"`
	DueDate  time.Time       `json:"due_date"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status"`
}
