package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meiwatch/internal/config"
)

// Category is the MEI activity class. It decides the applicable ceiling
// and which taxes compose the monthly DAS guide.
type Category string

const (
	CategoryCommerce        Category = "commerce"
	CategoryService         Category = "service"
	CategoryCommerceService Category = "commerce_service"
	CategoryTrucking        Category = "trucking"
)

// TruckingActivityCode is the CNAE class of road freight transport.
const TruckingActivityCode = "4930"

// DefaultAlertPct keeps the standard ATTENTION edge.
const DefaultAlertPct = 80

// DefaultAttentionEdge is the lower edge of the ATTENTION band.
const DefaultAttentionEdge = 0.65

func (c Category) Valid() bool {
	switch c {
	case CategoryCommerce, CategoryService, CategoryCommerceService, CategoryTrucking:
		return true
	default:
		return false
	}
}

func (c Category) Trucking() bool { return c == CategoryTrucking }

func (c Category) ChargesICMS() bool {
	return c == CategoryCommerce || c == CategoryCommerceService
}

func (c Category) ChargesISS() bool {
	return c == CategoryService || c == CategoryCommerceService || c == CategoryTrucking
}

// CeilingFor resolves the annual revenue ceiling of a category.
func CeilingFor(c Category, policy config.FiscalPolicy) (decimal.Decimal, error) {
	switch {
	case !c.Valid():
		return decimal.Zero, ErrInvalidCategory
	case c.Trucking():
		return policy.TruckingCeiling, nil
	default:
		return policy.StandardCeiling, nil
	}
}

// MonthlyGuideAmount composes the fixed DAS value of a category: INSS plus
// the ICMS and/or ISS flat amounts.
func MonthlyGuideAmount(c Category, policy config.FiscalPolicy) (inss, icms, iss decimal.Decimal, err error) {
	if !c.Valid() {
		return decimal.Zero, decimal.Zero, decimal.Zero, ErrInvalidCategory
	}
	inss = policy.INSS(c.Trucking())
	icms = decimal.Zero
	iss = decimal.Zero
	if c.ChargesICMS() {
		icms = policy.ICMS
	}
	if c.ChargesISS() {
		iss = policy.ISS
	}
	return inss, icms, iss, nil
}

type Entity struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	LegalName     string          `gorm:"not null" json:"legal_name"`
	CNPJ          string          `gorm:"column:cnpj;not null;uniqueIndex" json:"cnpj"`
	Email         string          `gorm:"not null" json:"email"`
	ActivityCode  string          `gorm:"column:activity_code" json:"activity_code,omitempty"`
	Category      Category        `gorm:"type:varchar(32);not null" json:"category"`
	AnnualCeiling decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"annual_ceiling"`
	AlertPct      int             `gorm:"not null;default:80" json:"alert_pct"`
	Active        bool            `gorm:"not null;default:true;index" json:"active"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Entity) TableName() string { return "entities" }

// AttentionEdge returns the ratio at which the ATTENTION band starts for
// this entity. A custom alert percentage replaces the default edge and is
// clamped to (0, 0.80].
//
// DefaultAlertPct is the column default and means "not customized", so it
// maps to DefaultAttentionEdge rather than 0.80. Read literally it would
// coincide with the WARNING edge and leave every default entity without an
// ATTENTION band. The mapping is therefore not monotonic around 80: 79 gives
// 0.79, 80 gives 0.65 and 81 clamps to 0.80.
func (e Entity) AttentionEdge() float64 {
	if e.AlertPct <= 0 || e.AlertPct == DefaultAlertPct {
		return DefaultAttentionEdge
	}
	edge := float64(e.AlertPct) / 100
	if edge > 0.80 {
		edge = 0.80
	}
	return edge
}
