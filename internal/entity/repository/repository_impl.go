package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/entity/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entity *domain.Entity) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO entities (id, legal_name, cnpj, email, activity_code, category, annual_ceiling, alert_pct, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.ID,
		entity.LegalName,
		entity.CNPJ,
		entity.Email,
		entity.ActivityCode,
		entity.Category,
		entity.AnnualCeiling,
		entity.AlertPct,
		entity.Active,
		entity.CreatedAt,
		entity.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Entity, error) {
	var entity domain.Entity
	err := db.WithContext(ctx).Raw(
		`SELECT id, legal_name, cnpj, email, activity_code, category, annual_ceiling, alert_pct, active, created_at, updated_at
		 FROM entities WHERE id = ?`,
		id,
	).Scan(&entity).Error
	if err != nil {
		return nil, err
	}
	if entity.ID == 0 {
		return nil, nil
	}
	return &entity, nil
}

func (r *repo) FindByCNPJ(ctx context.Context, db *gorm.DB, cnpj string) (*domain.Entity, error) {
	var entity domain.Entity
	err := db.WithContext(ctx).Raw(
		`SELECT id, legal_name, cnpj, email, activity_code, category, annual_ceiling, alert_pct, active, created_at, updated_at
		 FROM entities WHERE cnpj = ?`,
		cnpj,
	).Scan(&entity).Error
	if err != nil {
		return nil, err
	}
	if entity.ID == 0 {
		return nil, nil
	}
	return &entity, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Entity, error) {
	var entities []domain.Entity
	err := db.WithContext(ctx).
		Model(&domain.Entity{}).
		Where("active = ?", true).
		Order("id asc").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entities SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		at,
		id,
	)
	return res.RowsAffected, res.Error
}
