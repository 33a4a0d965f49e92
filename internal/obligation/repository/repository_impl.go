package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/obligation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertGuides(ctx context.Context, db *gorm.DB, guides []domain.DASGuide) (int64, error) {
	if len(guides) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}, {Name: "year"}, {Name: "month"}},
			DoNothing: true,
		}).
		Create(&guides)
	return res.RowsAffected, res.Error
}

func (r *repo) FindGuide(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.DASGuide, error) {
	var guide domain.DASGuide
	err := db.WithContext(ctx).Raw(
		`SELECT id, entity_id, year, month, due_date, amount, inss, icms, iss, status, paid_at, created_at, updated_at
		 FROM das_guides WHERE id = ?`,
		id,
	).Scan(&guide).Error
	if err != nil {
		return nil, err
	}
	if guide.ID == 0 {
		return nil, nil
	}
	return &guide, nil
}

func (r *repo) ListGuides(ctx context.Context, db *gorm.DB, entityID snowflake.ID) ([]domain.DASGuide, error) {
	var guides []domain.DASGuide
	err := db.WithContext(ctx).
		Model(&domain.DASGuide{}).
		Where("entity_id = ?", entityID).
		Order("due_date asc, id asc").
		Find(&guides).Error
	if err != nil {
		return nil, err
	}
	return guides, nil
}

func (r *repo) ListPendingDueBefore(ctx context.Context, db *gorm.DB, entityID snowflake.ID, cutoff time.Time) ([]domain.DASGuide, error) {
	var guides []domain.DASGuide
	err := db.WithContext(ctx).
		Model(&domain.DASGuide{}).
		Where("entity_id = ? AND status = ? AND due_date < ?", entityID, domain.GuideStatusPending, cutoff).
		Order("due_date asc, id asc").
		Find(&guides).Error
	if err != nil {
		return nil, err
	}
	return guides, nil
}

func (r *repo) ListPendingDueBetween(ctx context.Context, db *gorm.DB, entityID snowflake.ID, from, to time.Time) ([]domain.DASGuide, error) {
	var guides []domain.DASGuide
	err := db.WithContext(ctx).
		Model(&domain.DASGuide{}).
		Where("entity_id = ? AND status = ? AND due_date >= ? AND due_date <= ?", entityID, domain.GuideStatusPending, from, to).
		Order("due_date asc, id asc").
		Find(&guides).Error
	if err != nil {
		return nil, err
	}
	return guides, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE das_guides SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		domain.GuideStatusOverdue,
		at,
		id,
		domain.GuideStatusPending,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE das_guides SET status = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		domain.GuideStatusPaid,
		paidAt,
		at,
		id,
		domain.GuideStatusPending,
		domain.GuideStatusOverdue,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertDeclarationIfAbsent(ctx context.Context, db *gorm.DB, decl *domain.AnnualDeclaration) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}, {Name: "year"}},
			DoNothing: true,
		}).
		Create(decl)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindDeclaration(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.AnnualDeclaration, error) {
	var decl domain.AnnualDeclaration
	err := db.WithContext(ctx).Raw(
		`SELECT id, entity_id, year, gross_revenue, due_date, status, submitted_at, receipt_number, created_at, updated_at
		 FROM annual_declarations WHERE id = ?`,
		id,
	).Scan(&decl).Error
	if err != nil {
		return nil, err
	}
	if decl.ID == 0 {
		return nil, nil
	}
	return &decl, nil
}

func (r *repo) FindDeclarationByYear(ctx context.Context, db *gorm.DB, entityID snowflake.ID, year int) (*domain.AnnualDeclaration, error) {
	var decl domain.AnnualDeclaration
	err := db.WithContext(ctx).Raw(
		`SELECT id, entity_id, year, gross_revenue, due_date, status, submitted_at, receipt_number, created_at, updated_at
		 FROM annual_declarations WHERE entity_id = ? AND year = ?`,
		entityID,
		year,
	).Scan(&decl).Error
	if err != nil {
		return nil, err
	}
	if decl.ID == 0 {
		return nil, nil
	}
	return &decl, nil
}

func (r *repo) ListDeclarations(ctx context.Context, db *gorm.DB, entityID snowflake.ID) ([]domain.AnnualDeclaration, error) {
	var decls []domain.AnnualDeclaration
	err := db.WithContext(ctx).
		Model(&domain.AnnualDeclaration{}).
		Where("entity_id = ?", entityID).
		Order("due_date asc, id asc").
		Find(&decls).Error
	if err != nil {
		return nil, err
	}
	return decls, nil
}

func (r *repo) MarkSubmitted(ctx context.Context, db *gorm.DB, id snowflake.ID, receipt string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE annual_declarations SET status = ?, submitted_at = ?, receipt_number = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.DeclarationStatusSubmitted,
		at,
		receipt,
		at,
		id,
		domain.DeclarationStatusDraft,
	)
	return res.RowsAffected, res.Error
}
