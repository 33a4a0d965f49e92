package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Sink persists a notification and fans it out to outbound channels.
type Sink interface {
	Emit(ctx context.Context, e Emission) (*Notification, error)
}

// Channel delivers a persisted notification outside the system.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification, recipient string) error
}

type Service interface {
	Sink
	List(ctx context.Context, entityID snowflake.ID, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, id snowflake.ID) (Notification, error)
}

// Deduplicator decides whether an alert may fire.
type Deduplicator interface {
	// ShouldEmit is false when a notification of kind exists for the entity
	// inside the cooldown window.
	ShouldEmit(ctx context.Context, entityID snowflake.ID, kind string) (bool, error)
	// Permit combines the band-crossing guard with the cooldown according
	// to the configured mode. reason is empty when permitted.
	Permit(ctx context.Context, entityID snowflake.ID, kind string, crossed bool) (ok bool, reason string, err error)
	// ClaimOnce inserts the marker if absent and reports whether this call
	// won the claim.
	ClaimOnce(ctx context.Context, entityID snowflake.ID, markerKey string) (bool, error)
}

var (
	ErrNotificationNotFound = errors.New("notification_not_found")
	ErrInvalidEmission      = errors.New("invalid_emission")
	ErrInvalidMarker        = errors.New("invalid_marker")
	// ErrEmitFailed wraps a Sink failure seen by a caller.
	ErrEmitFailed           = errors.New("notification_emit_failed")
)
