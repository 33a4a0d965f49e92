package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindObservation(ctx context.Context, db *gorm.DB, entityID snowflake.ID, year int) (*Observation, error)
	UpsertObservation(ctx context.Context, db *gorm.DB, obs *Observation) error
}
