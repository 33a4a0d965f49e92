package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entity *Entity) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Entity, error)
	FindByCNPJ(ctx context.Context, db *gorm.DB, cnpj string) (*Entity, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Entity, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) (int64, error)
}
