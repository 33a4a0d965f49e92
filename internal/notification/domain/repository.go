package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
	ExistsSince(ctx context.Context, db *gorm.DB, entityID snowflake.ID, kind string, since time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, entityID snowflake.ID, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error)
	// InsertMarker reports false when the marker already existed.
	InsertMarker(ctx context.Context, db *gorm.DB, marker *Marker) (bool, error)
	DeleteMarkersBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
