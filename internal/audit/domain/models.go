package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Actions recorded on the audit trail.
const (
	ActionGuideOverdue         = "das_guide.overdue"
	ActionGuidePaid            = "das_guide.paid"
	ActionDeclarationSubmitted = "annual_declaration.submitted"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	EntityID   snowflake.ID      `gorm:"not null;index" json:"entity_id"`
	Actor      string            `gorm:"not null" json:"actor"`
	Action     string            `gorm:"not null" json:"action"`
	TargetType string            `gorm:"not null" json:"target_type"`
	TargetID   string            `gorm:"not null" json:"target_id"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
