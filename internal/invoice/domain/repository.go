package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// ListIssued returns ISSUED invoices with competency date in [from, to).
	ListIssued(ctx context.Context, db *gorm.DB, entityID snowflake.ID, from, to time.Time) ([]Invoice, error)
	// MarkCancelled flips an ISSUED invoice; zero rows means it was not ISSUED.
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (int64, error)
}
