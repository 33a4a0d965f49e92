package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Observation remembers the last band seen for an entity and year so the
// next cycle can tell a genuine upward crossing from a repeat.
type Observation struct {
	EntityID   snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Year       int          `gorm:"primaryKey;autoIncrement:false"`
	Ratio      float64      `gorm:"not null"`
	Band       string       `gorm:"type:varchar(32);not null"`
	ObservedAt time.Time    `gorm:"not null"`
}

func (Observation) TableName() string { return "ceiling_observations" }

// Status is the live ceiling picture for one entity and year.
type Status struct {
	EntityID              snowflake.ID    `json:"entity_id"`
	Year                  int             `json:"year"`
	Ceiling               decimal.Decimal `json:"ceiling"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	Ratio                 float64         `json:"ratio"`
	Band                  Band            `json:"-"`
	BandName              string          `json:"band"`
	Remaining             decimal.Decimal `json:"remaining"`
	Excess                decimal.Decimal `json:"excess"`
	DisqualificationLimit decimal.Decimal `json:"disqualification_limit"`
}

// CheckResult reports what one ceiling check did for an entity.
type CheckResult struct {
	EntityID     snowflake.ID
	Year         int
	Ratio        float64
	PreviousBand Band
	Band         Band
	Emitted      bool
	// SuppressedReason is set when a crossing was held back by the deduplicator.
	SuppressedReason string
}
