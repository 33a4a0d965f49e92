package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Entry struct {
	EntityID   snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	ListByTarget(ctx context.Context, entityID snowflake.ID, targetType, targetID string) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidEntity = errors.New("invalid_entity")
)
