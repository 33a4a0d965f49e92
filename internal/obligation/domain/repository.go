package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertGuides inserts all guides in one statement, skipping any
	// (entity, year, month) that already exists. It returns rows inserted.
	InsertGuides(ctx context.Context, db *gorm.DB, guides []DASGuide) (int64, error)
	FindGuide(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DASGuide, error)
	ListGuides(ctx context.Context, db *gorm.DB, entityID snowflake.ID) ([]DASGuide, error)
	// ListPendingDueBefore returns PENDING guides with due_date < cutoff.
	ListPendingDueBefore(ctx context.Context, db *gorm.DB, entityID snowflake.ID, cutoff time.Time) ([]DASGuide, error)
	ListPendingDueBetween(ctx context.Context, db *gorm.DB, entityID snowflake.ID, from, to time.Time) ([]DASGuide, error)
	// MarkOverdue flips one guide only while it is still PENDING.
	MarkOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error)
	// MarkPaid flips one guide only while it is PENDING or OVERDUE.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt, at time.Time) (int64, error)

	InsertDeclarationIfAbsent(ctx context.Context, db *gorm.DB, decl *AnnualDeclaration) (bool, error)
	FindDeclaration(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AnnualDeclaration, error)
	FindDeclarationByYear(ctx context.Context, db *gorm.DB, entityID snowflake.ID, year int) (*AnnualDeclaration, error)
	ListDeclarations(ctx context.Context, db *gorm.DB, entityID snowflake.ID) ([]AnnualDeclaration, error)
	// MarkSubmitted flips a DRAFT declaration; zero rows means it was not DRAFT.
	MarkSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID, receipt string, at time.Time) (int64, error)
}
