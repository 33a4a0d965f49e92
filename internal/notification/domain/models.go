package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityNormal   Severity = "normal"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Notification kinds. Ceiling kinds are one per band so the cooldown is
// evaluated per band.
const (
	KindCeilingAttention        = "ceiling.attention"
	KindCeilingWarning          = "ceiling.warning"
	KindCeilingCritical         = "ceiling.critical"
	KindCeilingExceeded         = "ceiling.exceeded"
	KindCeilingExceededCritical = "ceiling.exceeded_critical"
	KindGuideOverdue            = "guide.overdue"
	KindGuideDueSoon            = "guide.due_soon"
	KindDeclarationDeadline     = "declaration.deadline"
)

// Notification is append-only apart from the read flag.
type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	EntityID  snowflake.ID      `gorm:"not null;index:idx_notifications_entity_kind_created,priority:1" json:"entity_id"`
	Kind      string            `gorm:"type:varchar(64);not null;index:idx_notifications_entity_kind_created,priority:2" json:"kind"`
	Severity  Severity          `gorm:"type:varchar(16);not null" json:"severity"`
	Title     string            `gorm:"not null" json:"title"`
	Body      string            `gorm:"not null" json:"body"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	Read      bool              `gorm:"column:is_read;not null;default:false" json:"read"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index:idx_notifications_entity_kind_created,priority:3" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Marker is a once-only claim keyed per entity, e.g. one due-soon reminder
// per guide.
type Marker struct {
	EntityID  snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	MarkerKey string       `gorm:"primaryKey;type:varchar(128)"`
	CreatedAt time.Time    `gorm:"not null;index"`
}

func (Marker) TableName() string { return "notification_markers" }

// Emission is a notification about to be persisted and delivered.
type Emission struct {
	EntityID snowflake.ID
	Kind     string
	Severity Severity
	Title    string
	Body     string
	Metadata map[string]any
	// Recipient is the contact address for outbound channels; empty skips them.
	Recipient string
}
